package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"cleanrag/internal/vectorstore"
)

// Storage is a simple in-memory index using brute-force cosine similarity.
type Storage struct {
	mu      sync.RWMutex
	records []vectorstore.Record
	byID    map[string]int
}

func NewStorage() *Storage { return &Storage{byID: make(map[string]int)} }

// Upsert inserts records or replaces existing ones with the same ID.
func (s *Storage) Upsert(_ context.Context, records []vectorstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			return errors.New("memory: record id is required")
		}
		if len(r.Vector) == 0 {
			return fmt.Errorf("memory: record %q has no vector", r.ID)
		}
		if len(s.records) > 0 && len(r.Vector) != len(s.records[0].Vector) {
			return fmt.Errorf("memory: record %q dimension mismatch", r.ID)
		}
		if i, ok := s.byID[r.ID]; ok {
			s.records[i] = r
			continue
		}
		s.byID[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, opts vectorstore.SearchOptions) ([]vectorstore.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	topK := opts.TopK
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	type scored struct {
		idx   int
		score float64
	}
	candidates := make([]scored, 0, len(s.records))
	for i, r := range s.records {
		if !matchesFilters(r.Payload, opts.Filters) {
			continue
		}
		candidates = append(candidates, scored{i, cosine(r.Vector, vector)})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if topK > len(candidates) {
		topK = len(candidates)
	}
	results := make([]vectorstore.Match, 0, topK)
	for _, c := range candidates[:topK] {
		r := s.records[c.idx]
		results = append(results, vectorstore.Match{ID: r.ID, Score: c.score, Payload: r.Payload})
	}
	return results, nil
}

// Len returns the number of stored records.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func matchesFilters(payload map[string]any, filters map[string]string) bool {
	for key, want := range filters {
		got, ok := payload[key]
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
