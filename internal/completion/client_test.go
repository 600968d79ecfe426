package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyEnv = "TEST_COMPLETION_KEY"

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	t.Setenv(keyEnv, "sk-test")
	return NewClient(Config{
		BaseURL:   url,
		APIKeyEnv: keyEnv,
		Model:     "test/model",
		Referer:   "https://example.test",
		Title:     "cleanrag",
	}, nil)
}

func TestClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "https://example.test", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "cleanrag", r.Header.Get("X-Title"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test/model", req.Model)
		assert.Equal(t, DefaultTemperature, req.Temperature)
		assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.True(t, strings.HasSuffix(req.Messages[0].Content, contextHeader+"1. 와인 얼룩\n찬물"))
		assert.Equal(t, message{Role: "user", Content: "와인을 쏟았어요"}, req.Messages[1])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"test/model","choices":[{"message":{"role":"assistant","content":"찬물로 헹구세요."},"finish_reason":"stop"}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL).Complete(context.Background(), "와인을 쏟았어요", "1. 와인 얼룩\n찬물")
	require.NoError(t, err)
	assert.Equal(t, "찬물로 헹구세요.", res.Text)
	assert.Equal(t, "stop", res.FinishReason)
	assert.Equal(t, 42, res.Usage.TotalTokens)
}

func TestClient_CompleteWithoutContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, systemPrompt, req.Messages[0].Content)
		assert.NotContains(t, req.Messages[0].Content, "검색 결과")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL).Complete(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    error
		wantMsg string
	}{
		{name: "unauthorized", status: 401, body: `{"error":{"message":"No auth credentials found","code":401}}`, want: ErrAuth, wantMsg: "No auth credentials found"},
		{name: "payment required", status: 402, body: `{"error":{"message":"Insufficient credits"}}`, want: ErrAuth, wantMsg: "Insufficient credits"},
		{name: "rate limited", status: 429, body: `{"error":{"message":"slow down"}}`, want: ErrRateLimited, wantMsg: "slow down"},
		{name: "bad request", status: 400, body: `{"error":{"message":"not a valid model ID"}}`, want: ErrBadRequest, wantMsg: "not a valid model ID"},
		{name: "server error", status: 500, body: `internal boom`, want: ErrUpstream, wantMsg: "internal boom"},
		{name: "bad gateway", status: 502, body: ``, want: ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).Complete(context.Background(), "hi", "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var ce *Error
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.status, ce.Status)
			assert.Equal(t, tt.wantMsg, ce.Message)
			assert.Equal(t, tt.body, ce.Body)
			assert.Equal(t, int32(1), hits.Load(), "no retries")
		})
	}
}

func TestClient_MissingKeyFailsBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer srv.Close()

	t.Setenv(keyEnv, "")
	_, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: keyEnv}, nil).Complete(context.Background(), "hi", "")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorContains(t, err, keyEnv)
	assert.Zero(t, hits.Load())
}

func TestClient_MalformedSuccess(t *testing.T) {
	for name, body := range map[string]string{
		"not json":   `<html>`,
		"no choices": `{"choices":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).Complete(context.Background(), "hi", "")
			assert.ErrorIs(t, err, ErrUpstream)
		})
	}
}

func TestClient_DeadlineStaysVisible(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { <-release }))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, srv.URL).Complete(ctx, "hi", "")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrRateLimited, KindOf(&Error{Kind: ErrRateLimited}))
	assert.Nil(t, KindOf(errors.New("other")))
}
