// Package api exposes the HTTP surface: paper search with immediate
// summaries, per-paper processing status and retry, and the grounded
// chat endpoints. Handlers depend on narrow interfaces so tests can
// swap every collaborator.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"paperflow/internal/arxiv"
	"paperflow/internal/config"
	"paperflow/internal/models"
	"paperflow/internal/rag"
	"paperflow/internal/util"
)

const anonymousOwner = "anonymous"

type PaperSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]arxiv.Result, error)
}

type Summarizer interface {
	SummarizePapers(ctx context.Context, papers []arxiv.Result) ([]models.PaperSummary, error)
	Synthesize(ctx context.Context, summaries []models.PaperSummary, query string) (models.Synthesis, error)
}

type PaperStore interface {
	UpsertFromSearch(ctx context.Context, p models.Paper) error
	Get(ctx context.Context, arxivID string) (models.Paper, error)
	ListByIDs(ctx context.Context, arxivIDs []string) ([]models.Paper, error)
}

type ChatStore interface {
	CreateSession(ctx context.Context, ownerID, name string, paperIDs []string) (models.ChatSession, error)
	GetSession(ctx context.Context, sessionID string) (models.ChatSession, error)
	ListSessions(ctx context.Context, ownerID string) ([]models.ChatSession, error)
	ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	AppendTurn(ctx context.Context, sessionID, userContent, assistantContent string) error
}

type ContextRetriever interface {
	Retrieve(ctx context.Context, papers []models.Paper, query string, topK int) (map[string]models.PaperContext, error)
}

type Responder interface {
	Respond(ctx context.Context, contextText, query string, history []models.ChatMessage, historyWindow int) (string, models.TokenUsage, error)
}

// Scheduler is the pipeline's enqueue surface.
type Scheduler interface {
	Enqueue(paperID string) bool
	EnqueueRetry(ctx context.Context, paperID string) (bool, error)
}

type Server struct {
	cfg        config.Config
	searcher   PaperSearcher
	summarizer Summarizer
	papers     PaperStore
	chats      ChatStore
	retriever  ContextRetriever
	responder  Responder
	scheduler  Scheduler
	log        *zap.Logger
}

func NewServer(cfg config.Config, searcher PaperSearcher, summarizer Summarizer, papers PaperStore, chats ChatStore, retriever ContextRetriever, responder Responder, scheduler Scheduler, log *zap.Logger) *Server {
	return &Server{
		cfg:        cfg,
		searcher:   searcher,
		summarizer: summarizer,
		papers:     papers,
		chats:      chats,
		retriever:  retriever,
		responder:  responder,
		scheduler:  scheduler,
		log:        log,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/papers/search", s.handleSearch)
	mux.HandleFunc("/papers/", s.handlePapersScoped)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/chat/sessions", s.handleSessions)
	mux.HandleFunc("/chat/sessions/", s.handleSessionsScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("%w: query is required", util.ErrValidation))
		return
	}
	if req.MaxResults <= 0 {
		req.MaxResults = s.cfg.MaxSearchResults
	}

	results, err := s.searcher.Search(r.Context(), req.Query, req.MaxResults)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}

	ids := make([]string, 0, len(results))
	for _, res := range results {
		ids = append(ids, res.PaperID)
		p := models.Paper{
			ArxivID:       res.PaperID,
			Title:         res.Title,
			Authors:       res.Authors,
			Abstract:      res.Abstract,
			PublishedDate: res.Published,
			PDFURL:        res.PDFURL,
			EntryID:       res.EntryID,
			Source:        res.Source,
		}
		if err := s.papers.UpsertFromSearch(r.Context(), p); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
	}

	summaries, err := s.summarizer.SummarizePapers(r.Context(), results)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	synthesis, err := s.summarizer.Synthesize(r.Context(), summaries, req.Query)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}

	// Background indexing starts only after the summaries are safely
	// composed; an already indexed or failed paper is not re-queued.
	stored, err := s.papers.ListByIDs(r.Context(), ids)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	for _, p := range stored {
		if p.Stage == models.StageIndexed || p.Stage == models.StageFailed {
			continue
		}
		s.scheduler.Enqueue(p.ArxivID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"consolidated_summary": synthesis.Content,
		"token_usage_consolidated": map[string]any{
			"input_tokens":  synthesis.InputTokens,
			"output_tokens": synthesis.OutputTokens,
		},
		"papers": summaries,
	})
}

func (s *Server) handlePapersScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/papers/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	paperID := parts[0]

	switch parts[1] {
	case "status":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		p, err := s.papers.Get(r.Context(), paperID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, p.Status())
	case "process":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleProcess(w, r, paperID)
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request, paperID string) {
	p, err := s.papers.Get(r.Context(), paperID)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	if p.Stage == models.StageIndexed {
		writeJSON(w, http.StatusOK, map[string]any{
			"paper_id": p.ArxivID,
			"message":  "paper already processed",
		})
		return
	}
	queued, err := s.scheduler.EnqueueRetry(r.Context(), paperID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if !queued {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"paper_id": p.ArxivID,
			"message":  "processing already in progress",
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"paper_id": p.ArxivID,
		"message":  "processing queued",
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	ownerID := requestOwner(r)

	var req struct {
		Query       string   `json:"query"`
		PaperIDs    []string `json:"paper_ids"`
		SessionID   string   `json:"chat_session_id"`
		SessionName string   `json:"session_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("%w: query is required", util.ErrValidation))
		return
	}
	if len(req.PaperIDs) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("%w: paper_ids is required", util.ErrValidation))
		return
	}

	// Every requested paper must be fully indexed before any session
	// state is touched; a partial selection gets no session at all.
	papers, err := s.papers.ListByIDs(r.Context(), req.PaperIDs)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	byID := make(map[string]models.Paper, len(papers))
	for _, p := range papers {
		byID[p.ArxivID] = p
	}
	notReady := make([]string, 0)
	ordered := make([]models.Paper, 0, len(req.PaperIDs))
	for _, id := range req.PaperIDs {
		p, ok := byID[id]
		if !ok || !p.ChatReady() {
			notReady = append(notReady, id)
			continue
		}
		ordered = append(ordered, p)
	}
	if len(notReady) > 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("%w: papers not ready for chat: %s", util.ErrValidation, strings.Join(notReady, ", ")))
		return
	}

	var session models.ChatSession
	if req.SessionID != "" {
		session, err = s.chats.GetSession(r.Context(), req.SessionID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		if session.OwnerID != ownerID {
			writeErr(w, http.StatusForbidden, fmt.Errorf("%w: session belongs to another user", util.ErrAuthorization))
			return
		}
	} else {
		name := strings.TrimSpace(req.SessionName)
		if name == "" {
			name = sessionNameFromQuery(req.Query)
		}
		session, err = s.chats.CreateSession(r.Context(), ownerID, name, req.PaperIDs)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
	}

	history, err := s.chats.ListMessages(r.Context(), session.SessionID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	contexts, err := s.retriever.Retrieve(r.Context(), ordered, req.Query, s.cfg.TopK)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	contextText := rag.FormatContext(ordered, contexts)

	answer, usage, err := s.responder.Respond(r.Context(), contextText, req.Query, history, s.cfg.HistoryWindow)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}

	if err := s.chats.AppendTurn(r.Context(), session.SessionID, req.Query, answer); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chat_session_id": session.SessionID,
		"response":        answer,
		"sources":         contexts,
		"token_usage": map[string]any{
			"input_tokens":  usage.InputTokens,
			"output_tokens": usage.OutputTokens,
			"total_tokens":  usage.TotalTokens,
		},
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	sessions, err := s.chats.ListSessions(r.Context(), requestOwner(r))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleSessionsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/chat/sessions/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "messages" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	session, err := s.chats.GetSession(r.Context(), parts[0])
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	if session.OwnerID != requestOwner(r) {
		writeErr(w, http.StatusForbidden, fmt.Errorf("%w: session belongs to another user", util.ErrAuthorization))
		return
	}
	messages, err := s.chats.ListMessages(r.Context(), session.SessionID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chat_session_id": session.SessionID,
		"messages":        messages,
	})
}

func requestOwner(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-User-ID")); v != "" {
		return v
	}
	return anonymousOwner
}

// sessionNameFromQuery derives a default session name from the first
// words of the opening question.
func sessionNameFromQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) > 6 {
		fields = fields[:6]
	}
	return strings.Join(fields, " ")
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, util.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, util.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, util.ErrProvider):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	msg := "request failed"
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
		},
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
