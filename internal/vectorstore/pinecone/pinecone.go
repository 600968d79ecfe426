package pinecone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"cleanrag/internal/vectorstore"
)

// Storage talks to a single Pinecone index over its data-plane REST API.
type Storage struct {
	namespace string
	apiKey    string
	client    *resty.Client
}

type Config struct {
	Host      string
	APIKeyEnv string
	Namespace string
	Timeout   time.Duration
}

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type queryRequest struct {
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	IncludeMetadata bool           `json:"includeMetadata"`
	Namespace       string         `json:"namespace,omitempty"`
	Filter          map[string]any `json:"filter,omitempty"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	host := strings.TrimRight(cfg.Host, "/")
	if host != "" && !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return &Storage{
		namespace: cfg.Namespace,
		apiKey:    os.Getenv(cfg.APIKeyEnv),
		client: resty.New().
			SetBaseURL(host).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

func (s *Storage) Search(ctx context.Context, vec []float32, opts vectorstore.SearchOptions) ([]vectorstore.Match, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	req := queryRequest{
		Vector:          vec,
		TopK:            topK,
		IncludeMetadata: true,
		Namespace:       s.namespace,
		Filter:          buildFilter(opts.Filters),
	}
	var out queryResponse
	if err := s.post(ctx, "/query", req, &out); err != nil {
		return nil, err
	}
	matches := make([]vectorstore.Match, 0, len(out.Matches))
	for _, m := range out.Matches {
		payload := m.Metadata
		if payload == nil {
			payload = map[string]any{}
		}
		matches = append(matches, vectorstore.Match{ID: m.ID, Score: m.Score, Payload: payload})
	}
	return matches, nil
}

func (s *Storage) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	vectors := make([]vector, len(records))
	for i, r := range records {
		vectors[i] = vector{ID: r.ID, Values: r.Vector, Metadata: r.Payload}
	}
	body := struct {
		Vectors   []vector `json:"vectors"`
		Namespace string   `json:"namespace,omitempty"`
	}{Vectors: vectors, Namespace: s.namespace}
	return s.post(ctx, "/vectors/upsert", body, nil)
}

func (s *Storage) post(ctx context.Context, path string, body, out any) error {
	if s.apiKey == "" {
		return errors.New("pinecone: missing API key")
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Api-Key", s.apiKey).
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("pinecone POST %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("pinecone POST %s failed: %s: %s", path, resp.Status(), strings.TrimSpace(resp.String()))
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("pinecone: decode response: %w", err)
		}
	}
	return nil
}

// buildFilter converts equality filters to Pinecone's metadata filter syntax.
func buildFilter(filters map[string]string) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	out := make(map[string]any, len(filters))
	for k, v := range filters {
		out[k] = map[string]any{"$eq": v}
	}
	return out
}
