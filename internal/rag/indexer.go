// Package rag implements the chunk/index and context-retrieval halves
// of the retrieval-augmented chat path. Each paper owns an isolated
// vector collection, which keeps deletion and re-indexing per paper.
package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"paperflow/internal/chunker"
	"paperflow/internal/llm"
	"paperflow/internal/util"
	"paperflow/internal/vectorstore"
)

// CollectionName derives the deterministic, URL/filesystem-safe
// collection name for a paper id.
func CollectionName(paperID string) string {
	r := strings.NewReplacer(".", "_", ":", "_", "/", "_")
	return "paper_" + r.Replace(paperID)
}

type Indexer struct {
	embedder     llm.Embedder
	store        vectorstore.Store
	model        string
	embedDim     int
	chunkSize    int
	chunkOverlap int
	log          *zap.Logger
}

// NewIndexer builds an indexer. embedDim is the expected embedding
// width; 0 disables the check and the width is taken from the provider.
func NewIndexer(embedder llm.Embedder, store vectorstore.Store, model string, embedDim, chunkSize, chunkOverlap int, log *zap.Logger) *Indexer {
	if chunkSize <= 0 {
		chunkSize = chunker.DefaultSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunker.DefaultOverlap
	}
	return &Indexer{
		embedder:     embedder,
		store:        store,
		model:        model,
		embedDim:     embedDim,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		log:          log,
	}
}

// Index chunks the cleaned text, embeds all chunks in one batch, and
// upserts one point per chunk into the paper's collection. It returns
// the collection name, or "" when the text yields no chunks or the
// provider yields no vectors; both are non-error outcomes the caller
// must treat as "not indexed". Any store fault is an error and the
// caller must not stamp indexed_at.
func (ix *Indexer) Index(ctx context.Context, paperID, title, text string) (string, error) {
	chunks := chunker.Split(text, ix.chunkSize, ix.chunkOverlap)
	if len(chunks) == 0 {
		ix.log.Warn("no chunks generated, text too short or empty", zap.String("paper_id", paperID))
		return "", nil
	}

	vectors, err := ix.embedder.Embed(ctx, ix.model, chunks)
	if err != nil {
		return "", fmt.Errorf("%w: embed %d chunks for %s: %v", util.ErrIndexing, len(chunks), paperID, err)
	}
	if len(vectors) == 0 {
		ix.log.Warn("embedding returned no vectors", zap.String("paper_id", paperID))
		return "", nil
	}
	if len(vectors) != len(chunks) {
		return "", fmt.Errorf("%w: vector count %d does not match chunk count %d for %s", util.ErrIndexing, len(vectors), len(chunks), paperID)
	}
	if ix.embedDim > 0 && len(vectors[0]) != ix.embedDim {
		return "", fmt.Errorf("%w: provider returned %d-wide vectors, configured width is %d", util.ErrIndexing, len(vectors[0]), ix.embedDim)
	}

	name := CollectionName(paperID)
	if err := ix.store.CreateCollection(ctx, name, len(vectors[0])); err != nil {
		return "", fmt.Errorf("%w: ensure collection %s: %v", util.ErrIndexing, name, err)
	}

	points := make([]vectorstore.Point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, vectorstore.Point{
			ID:     i,
			Vector: vectors[i],
			Payload: map[string]any{
				"paper_id":    paperID,
				"paper_title": title,
				"chunk_id":    i,
				"text":        chunk,
			},
		})
	}
	if err := ix.store.Upsert(ctx, name, points); err != nil {
		return "", fmt.Errorf("%w: upsert %d points into %s: %v", util.ErrIndexing, len(points), name, err)
	}

	ix.log.Info("paper indexed",
		zap.String("paper_id", paperID),
		zap.String("collection", name),
		zap.Int("chunks", len(chunks)),
	)
	return name, nil
}
