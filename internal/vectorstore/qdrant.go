// Package vectorstore is a minimal REST client to Qdrant scoped to the
// capabilities the pipeline needs: idempotent collection creation,
// point upsert, and per-collection similarity search.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Point is one chunk vector with its payload.
type Point struct {
	ID      int            `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// ScoredPoint is one similarity-search hit.
type ScoredPoint struct {
	ID      int            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Store is the vector-store capability consumed by the indexer and
// retriever. Implementations must make CreateCollection safe to race:
// a pre-existing collection of the same name is accepted, never
// recreated.
type Store interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, dim int) error
	Upsert(ctx context.Context, name string, points []Point) error
	Search(ctx context.Context, name string, vector []float32, topK int) ([]ScoredPoint, error)
}

type Qdrant struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zap.Logger
}

func NewQdrant(baseURL, apiKey string, log *zap.Logger) *Qdrant {
	return &Qdrant{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

func (q *Qdrant) CollectionExists(ctx context.Context, name string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", q.baseURL, name), nil)
	if err != nil {
		return false, err
	}
	q.auth(req)
	resp, err := q.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("qdrant get collection %s: %w", name, err)
	}
	defer drain(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 300:
		return false, fmt.Errorf("qdrant get collection %s: %s", name, resp.Status)
	}
	return true, nil
}

// CreateCollection ensures a cosine-distance collection of the given
// dimensionality exists. An existing collection is left untouched:
// delete-then-create on name collision would lose data under
// concurrent re-indexing.
func (q *Qdrant) CreateCollection(ctx context.Context, name string, dim int) error {
	exists, err := q.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{"size": dim, "distance": "Cosine"},
	}
	status, err := q.putJSON(ctx, fmt.Sprintf("%s/collections/%s", q.baseURL, name), body)
	if err != nil {
		return err
	}
	// 409 means another writer won the create race; same schema, fine.
	if status >= 300 && status != http.StatusConflict {
		return fmt.Errorf("qdrant create collection %s: status %d", name, status)
	}
	q.log.Debug("collection ready", zap.String("collection", name), zap.Int("dim", dim))
	return nil
}

func (q *Qdrant) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	status, err := q.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", q.baseURL, name), body)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant upsert into %s: status %d", name, status)
	}
	return nil
}

func (q *Qdrant) Search(ctx context.Context, name string, vector []float32, topK int) ([]ScoredPoint, error) {
	if topK <= 0 {
		topK = 5
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var parsed struct {
		Result []ScoredPoint `json:"result"`
	}
	if err := q.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", q.baseURL, name), body, &parsed); err != nil {
		return nil, err
	}
	return parsed.Result, nil
}

// CountPoints reports the exact number of points in a collection, for
// operational checks outside the Store capability.
func (q *Qdrant) CountPoints(ctx context.Context, name string) (int, error) {
	var parsed struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := q.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/count", q.baseURL, name), map[string]any{"exact": true}, &parsed); err != nil {
		return 0, err
	}
	return parsed.Result.Count, nil
}

func (q *Qdrant) auth(req *http.Request) {
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
}

func (q *Qdrant) putJSON(ctx context.Context, url string, body any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	q.auth(req)
	resp, err := q.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant PUT %s: %w", url, err)
	}
	defer drain(resp)
	return resp.StatusCode, nil
}

func (q *Qdrant) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	q.auth(req)
	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant POST %s: %w", url, err)
	}
	defer drain(resp)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
