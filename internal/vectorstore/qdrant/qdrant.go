package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"cleanrag/internal/vectorstore"
)

// recordIDKey stores the caller's record ID, since Qdrant point IDs must be
// UUIDs or integers.
const recordIDKey = "record_id"

// Storage is a minimal REST client to a Qdrant collection.
// It creates the collection on first upsert if missing.
type Storage struct {
	collection string
	distance   string
	client     *resty.Client

	mu      sync.Mutex
	ensured bool
}

type Config struct {
	URL        string
	APIKeyEnv  string
	Collection string
	Distance   string
	Timeout    time.Duration
}

type searchResult struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	distance := cfg.Distance
	if distance == "" {
		distance = "Cosine"
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if key := os.Getenv(cfg.APIKeyEnv); cfg.APIKeyEnv != "" && key != "" {
		client.SetHeader("api-key", key)
	}
	return &Storage{collection: cfg.Collection, distance: distance, client: client}
}

func (s *Storage) Search(ctx context.Context, vector []float32, opts vectorstore.SearchOptions) ([]vectorstore.Match, error) {
	limit := opts.TopK
	if limit <= 0 {
		limit = vectorstore.DefaultTopK
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter := buildFilter(opts.Filters); filter != nil {
		req["filter"] = filter
	}
	var out struct {
		Result []searchResult `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", s.collection), req, &out); err != nil {
		return nil, err
	}
	matches := make([]vectorstore.Match, 0, len(out.Result))
	for _, r := range out.Result {
		payload := r.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		id := fmt.Sprint(r.ID)
		if v, ok := payload[recordIDKey].(string); ok && v != "" {
			id = v
		}
		matches = append(matches, vectorstore.Match{ID: id, Score: r.Score, Payload: payload})
	}
	return matches, nil
}

func (s *Storage) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(records[0].Vector)); err != nil {
		return err
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		payload := make(map[string]any, len(r.Payload)+1)
		for k, v := range r.Payload {
			payload[k] = v
		}
		payload[recordIDKey] = r.ID
		points[i] = map[string]any{
			"id":      pointID(r.ID),
			"vector":  r.Vector,
			"payload": payload,
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", s.collection), body, nil)
}

func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("qdrant: invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}
	resp, err := s.client.R().SetContext(ctx).Get(fmt.Sprintf("/collections/%s", s.collection))
	if err != nil {
		return fmt.Errorf("qdrant: get collection: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		body := map[string]any{
			"vectors": map[string]any{"size": dimension, "distance": s.distance},
		}
		if err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", s.collection), body, nil); err != nil {
			return err
		}
	} else if resp.IsError() {
		return fmt.Errorf("qdrant: get collection failed: %s", resp.Status())
	}
	s.ensured = true
	return nil
}

func (s *Storage) do(ctx context.Context, method, path string, body, out any) error {
	req := s.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status(), strings.TrimSpace(resp.String()))
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("qdrant: decode response: %w", err)
		}
	}
	return nil
}

// buildFilter turns equality filters into a Qdrant "must" clause.
func buildFilter(filters map[string]string) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	must := make([]any, 0, len(keys))
	for _, k := range keys {
		must = append(must, map[string]any{
			"key":   k,
			"match": map[string]any{"value": filters[k]},
		})
	}
	return map[string]any{"must": must}
}

func pointID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}
