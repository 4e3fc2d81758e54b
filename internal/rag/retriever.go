package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"paperflow/internal/llm"
	"paperflow/internal/models"
	"paperflow/internal/util"
	"paperflow/internal/vectorstore"
)

// chunkSeparator joins retrieved chunk texts inside one paper's merged
// context.
const chunkSeparator = "\n\n---\n\n"

const retrievalErrorText = "Error retrieving context for this paper."

type Retriever struct {
	embedder llm.Embedder
	store    vectorstore.Store
	model    string
	log      *zap.Logger
}

func NewRetriever(embedder llm.Embedder, store vectorstore.Store, model string, log *zap.Logger) *Retriever {
	return &Retriever{embedder: embedder, store: store, model: model, log: log}
}

// Retrieve embeds the query once, then runs a top-K search against each
// selected paper's own collection. Papers without a collection are
// skipped with a warning. A search fault for one paper degrades that
// paper's entry to an error placeholder; the call still succeeds for
// the rest.
func (r *Retriever) Retrieve(ctx context.Context, papers []models.Paper, query string, topK int) (map[string]models.PaperContext, error) {
	if topK <= 0 {
		topK = 5
	}
	vectors, err := r.embedder.Embed(ctx, r.model, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", util.ErrProvider, err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: embed query returned no vectors", util.ErrProvider)
	}
	queryVec := vectors[0]

	contexts := make(map[string]models.PaperContext, len(papers))
	for _, paper := range papers {
		if paper.VectorCollection == "" {
			r.log.Warn("paper has no vector collection, skipping retrieval", zap.String("paper_id", paper.ArxivID))
			continue
		}
		hits, err := r.store.Search(ctx, paper.VectorCollection, queryVec, topK)
		if err != nil {
			r.log.Error("context retrieval failed",
				zap.String("paper_id", paper.ArxivID),
				zap.String("collection", paper.VectorCollection),
				zap.Error(err),
			)
			contexts[paper.ArxivID] = models.PaperContext{
				Title:  paper.Title,
				Text:   retrievalErrorText,
				Chunks: []models.ContextChunk{},
			}
			continue
		}

		chunks := make([]models.ContextChunk, 0, len(hits))
		texts := make([]string, 0, len(hits))
		for _, hit := range hits {
			text, ok := hit.Payload["text"].(string)
			if !ok {
				continue
			}
			chunks = append(chunks, models.ContextChunk{
				ChunkID: payloadChunkID(hit),
				Score:   hit.Score,
				Text:    text,
			})
			texts = append(texts, text)
		}
		contexts[paper.ArxivID] = models.PaperContext{
			Title:  paper.Title,
			Text:   strings.Join(texts, chunkSeparator),
			Chunks: chunks,
		}
	}
	return contexts, nil
}

// payloadChunkID prefers the payload chunk_id and falls back to the
// point id.
func payloadChunkID(hit vectorstore.ScoredPoint) int {
	if v, ok := hit.Payload["chunk_id"].(float64); ok {
		return int(v)
	}
	if v, ok := hit.Payload["chunk_id"].(int); ok {
		return v
	}
	return hit.ID
}

// FormatContext renders retrieved per-paper contexts as one grounding
// block for the chat prompt, in the caller's paper selection order.
func FormatContext(papers []models.Paper, contexts map[string]models.PaperContext) string {
	parts := make([]string, 0, len(contexts))
	for _, paper := range papers {
		pc, ok := contexts[paper.ArxivID]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("=== Paper: %s ===\nTitle: %s\nContent:\n%s\n", paper.ArxivID, pc.Title, pc.Text))
	}
	return strings.Join(parts, "\n")
}
