package vectorstore

import "context"

// Record is a vector plus its payload, as written to an index.
type Record struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Match is a similarity search hit.
type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// SearchOptions controls a similarity query. Filters are exact-match
// equality constraints on payload fields.
type SearchOptions struct {
	TopK    int
	Filters map[string]string
}

// Index is a similarity index queried by vector.
type Index interface {
	Search(ctx context.Context, vector []float32, opts SearchOptions) ([]Match, error)
	Upsert(ctx context.Context, records []Record) error
}

const DefaultTopK = 5
