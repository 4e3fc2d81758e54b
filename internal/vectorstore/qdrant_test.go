package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollectionExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/have":
			_, _ = w.Write([]byte(`{"result": {}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL, "", zap.NewNop())
	exists, err := q.CollectionExists(context.Background(), "have")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = q.CollectionExists(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCreateCollectionLeavesExistingUntouched(t *testing.T) {
	var puts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			atomic.AddInt64(&puts, 1)
		}
		_, _ = w.Write([]byte(`{"result": {}}`))
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL, "", zap.NewNop())
	require.NoError(t, q.CreateCollection(context.Background(), "paper_1234", 1536))
	require.Zero(t, atomic.LoadInt64(&puts), "existing collection must not be recreated")
}

func TestCreateCollectionNew(t *testing.T) {
	var created map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/paper_1234":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			_, _ = w.Write([]byte(`{"result": true}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL, "", zap.NewNop())
	require.NoError(t, q.CreateCollection(context.Background(), "paper_1234", 1536))

	vectors := created["vectors"].(map[string]any)
	require.Equal(t, float64(1536), vectors["size"])
	require.Equal(t, "Cosine", vectors["distance"])
}

func TestCreateCollectionConcurrentRace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		// Another writer created it between the check and the PUT.
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL, "", zap.NewNop())
	require.NoError(t, q.CreateCollection(context.Background(), "paper_raced", 1536))
}

func TestUpsertWaitsForCommit(t *testing.T) {
	var gotPath, gotWait string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotWait = r.URL.Query().Get("wait")
		_, _ = w.Write([]byte(`{"result": {}}`))
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL, "", zap.NewNop())
	err := q.Upsert(context.Background(), "paper_1", []Point{
		{ID: 0, Vector: []float32{0.1}, Payload: map[string]any{"text": "a"}},
	})
	require.NoError(t, err)
	require.Equal(t, "/collections/paper_1/points", gotPath)
	require.Equal(t, "true", gotWait)
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collections/paper_1/points/search", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, float64(3), body["limit"])
		require.Equal(t, true, body["with_payload"])
		_, _ = w.Write([]byte(`{"result": [
			{"id": 2, "score": 0.91, "payload": {"chunk_id": 2, "text": "hit"}}
		]}`))
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL, "", zap.NewNop())
	hits, err := q.Search(context.Background(), "paper_1", []float32{0.1, 0.2}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, 2, hits[0].ID)
	require.Equal(t, 0.91, hits[0].Score)
	require.Equal(t, "hit", hits[0].Payload["text"])
}

func TestCountPoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collections/paper_1/points/count", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, true, body["exact"])
		_, _ = w.Write([]byte(`{"result": {"count": 12}}`))
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL, "", zap.NewNop())
	n, err := q.CountPoints(context.Background(), "paper_1")
	require.NoError(t, err)
	require.Equal(t, 12, n)
}

func TestAPIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		_, _ = w.Write([]byte(`{"result": {}}`))
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL, "secret", zap.NewNop())
	_, err := q.CollectionExists(context.Background(), "c")
	require.NoError(t, err)
	require.Equal(t, "secret", gotKey)
}
