package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"paperflow/internal/api"
	"paperflow/internal/arxiv"
	"paperflow/internal/chat"
	"paperflow/internal/cleaner"
	"paperflow/internal/config"
	"paperflow/internal/download"
	"paperflow/internal/extract"
	"paperflow/internal/llm"
	"paperflow/internal/pipeline"
	"paperflow/internal/prompts"
	"paperflow/internal/rag"
	"paperflow/internal/storage"
	"paperflow/internal/summarizer"
	"paperflow/internal/vectorstore"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()
	if err := storage.EnsureSchema(ctx, db); err != nil {
		logger.Fatal("schema", zap.Error(err))
	}

	lib, err := prompts.NewLibrary(cfg.PromptsDir)
	if err != nil {
		logger.Fatal("prompts", zap.Error(err))
	}

	paperRepo := storage.NewPaperRepo(db)
	chatRepo := storage.NewChatRepo(db)

	provider := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, logger)
	store := vectorstore.NewQdrant(cfg.QdrantURL, cfg.QdrantAPIKey, logger)

	searcher := arxiv.NewClient(cfg.ArxivBaseURL, logger)
	downloader := download.New(cfg.PaperDir, time.Duration(cfg.DownloadTimeoutSecs)*time.Second, logger)
	extractor := extract.New()
	indexer := rag.NewIndexer(provider, store, cfg.EmbeddingModel, cfg.EmbedDim, cfg.ChunkSize, cfg.ChunkOverlap, logger)
	retriever := rag.NewRetriever(provider, store, cfg.EmbeddingModel, logger)
	summ := summarizer.New(provider, lib, cfg.SummarizeModel, cfg.SummaryMaxTokens, cfg.SynthesisMaxTokens, logger)
	responder := chat.NewResponder(provider, lib, cfg.ChatModel, cfg.ChatMaxTokens, logger)

	runner := pipeline.NewRunner(paperRepo, downloader, extractor, cleaner.Clean, indexer, cfg.PipelineWorkers, 64, logger)
	runner.Start(ctx)
	defer runner.Stop()

	server := api.NewServer(cfg, searcher, summ, paperRepo, chatRepo, retriever, responder, runner, logger)

	httpSrv := &http.Server{Addr: cfg.APIAddr, Handler: server.Routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("paperflow api listening",
		zap.String("addr", cfg.APIAddr),
		zap.String("summarize_model", cfg.SummarizeModel),
		zap.String("embedding_model", cfg.EmbeddingModel),
	)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server", zap.Error(err))
	}
}
