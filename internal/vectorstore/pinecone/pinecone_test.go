package pinecone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanrag/internal/vectorstore"
)

func TestStorage_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "pc-key", r.Header.Get("Api-Key"))
		var req queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.TopK)
		assert.True(t, req.IncludeMetadata)
		assert.Equal(t, "shops", req.Namespace)
		assert.Equal(t, map[string]any{"$eq": "active"}, req.Filter["subscription"])
		_, _ = w.Write([]byte(`{"matches":[{"id":"shop-1","score":0.8,"metadata":{"shop_name":"클린마스터 세탁소","rating":4.8}}]}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_PINECONE_KEY", "pc-key")
	s := NewStorage(Config{Host: srv.URL, APIKeyEnv: "TEST_PINECONE_KEY", Namespace: "shops"})
	res, err := s.Search(context.Background(), []float32{1, 0}, vectorstore.SearchOptions{
		TopK:    3,
		Filters: map[string]string{"subscription": "active"},
	})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "shop-1", res[0].ID)
	assert.Equal(t, 4.8, res[0].Payload["rating"])
}

func TestStorage_Upsert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vectors/upsert", r.URL.Path)
		var body struct {
			Vectors []vector `json:"vectors"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Vectors, 2)
		assert.Equal(t, "k-2", body.Vectors[1].ID)
		_, _ = w.Write([]byte(`{"upsertedCount":2}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_PINECONE_KEY", "pc-key")
	s := NewStorage(Config{Host: srv.URL, APIKeyEnv: "TEST_PINECONE_KEY"})
	err := s.Upsert(context.Background(), []vectorstore.Record{
		{ID: "k-1", Vector: []float32{1}},
		{ID: "k-2", Vector: []float32{2}},
	})
	assert.NoError(t, err)
}

func TestStorage_Errors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	t.Setenv("TEST_PINECONE_KEY", "")
	_, err := NewStorage(Config{Host: srv.URL, APIKeyEnv: "TEST_PINECONE_KEY"}).
		Search(context.Background(), []float32{1}, vectorstore.SearchOptions{})
	assert.ErrorContains(t, err, "missing API key")
	assert.Zero(t, hits.Load())

	t.Setenv("TEST_PINECONE_KEY", "pc-key")
	_, err = NewStorage(Config{Host: srv.URL, APIKeyEnv: "TEST_PINECONE_KEY"}).
		Search(context.Background(), []float32{1}, vectorstore.SearchOptions{})
	assert.ErrorContains(t, err, "403")
}

func TestNewStorage_AddsScheme(t *testing.T) {
	s := NewStorage(Config{Host: "laundry-abc.svc.pinecone.io/"})
	assert.Equal(t, "https://laundry-abc.svc.pinecone.io", s.client.BaseURL)
}
