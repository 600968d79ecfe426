package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanrag/internal/vectorstore"
)

func TestStorage_SearchSendsFilterAndMapsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/partners/points/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 3, body["limit"])
		assert.Equal(t, true, body["with_payload"])
		filter := body["filter"].(map[string]any)
		must := filter["must"].([]any)
		require.Len(t, must, 2)
		assert.Equal(t, "subscription", must[0].(map[string]any)["key"])
		assert.Equal(t, "zipcode", must[1].(map[string]any)["key"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":[
			{"id":"3f1c0a3e-0000-0000-0000-000000000001","score":0.91,"payload":{"record_id":"shop-1","shop_name":"클린마스터"}},
			{"id":7,"score":0.5,"payload":{"shop_name":"프리미엄"}}
		]}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_QDRANT_KEY", "secret")
	s := NewStorage(Config{URL: srv.URL, APIKeyEnv: "TEST_QDRANT_KEY", Collection: "partners"})
	res, err := s.Search(context.Background(), []float32{0.1, 0.2}, vectorstore.SearchOptions{
		TopK:    3,
		Filters: map[string]string{"zipcode": "06236", "subscription": "active"},
	})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "shop-1", res[0].ID)
	assert.Equal(t, 0.91, res[0].Score)
	assert.Equal(t, "7", res[1].ID)
	assert.Equal(t, "프리미엄", res[1].Payload["shop_name"])
}

func TestStorage_SearchWithoutFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "filter")
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer srv.Close()

	res, err := NewStorage(Config{URL: srv.URL, Collection: "knowledge"}).
		Search(context.Background(), []float32{1}, vectorstore.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestStorage_SearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":{"error":"Collection not found"}}`))
	}))
	defer srv.Close()

	_, err := NewStorage(Config{URL: srv.URL, Collection: "missing"}).
		Search(context.Background(), []float32{1}, vectorstore.SearchOptions{})
	assert.ErrorContains(t, err, "404")
}

func TestStorage_UpsertCreatesCollectionOnce(t *testing.T) {
	var created, upserts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/knowledge":
			if created == 0 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"result":{}}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/knowledge":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			vectors := body["vectors"].(map[string]any)
			assert.EqualValues(t, 2, vectors["size"])
			assert.Equal(t, "Cosine", vectors["distance"])
			created++
			_, _ = w.Write([]byte(`{"result":true}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/knowledge/points":
			assert.Equal(t, "true", r.URL.Query().Get("wait"))
			var body struct {
				Points []struct {
					ID      string         `json:"id"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body.Points, 1)
			_, err := uuid.Parse(body.Points[0].ID)
			assert.NoError(t, err)
			assert.Equal(t, "k-1", body.Points[0].Payload["record_id"])
			upserts++
			_, _ = w.Write([]byte(`{"result":{}}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "knowledge"})
	rec := []vectorstore.Record{{ID: "k-1", Vector: []float32{1, 0}, Payload: map[string]any{"title": "커피 얼룩"}}}
	require.NoError(t, s.Upsert(context.Background(), rec))
	require.NoError(t, s.Upsert(context.Background(), rec))
	assert.Equal(t, 1, created)
	assert.Equal(t, 2, upserts)
}

func TestPointIDIsStable(t *testing.T) {
	assert.Equal(t, pointID("k-1"), pointID("k-1"))
	assert.NotEqual(t, pointID("k-1"), pointID("k-2"))
	id := uuid.New().String()
	assert.Equal(t, id, pointID(id))
}
