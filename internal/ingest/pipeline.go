// Package ingest seeds the knowledge and providers indices from YAML seed
// files and plain-text documents.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cleanrag/internal/chunker"
	"cleanrag/internal/embedding"
	"cleanrag/internal/logging"
	"cleanrag/internal/vectorstore"
)

// Target selects which index a seed run writes to.
type Target string

const (
	TargetAll       Target = ""
	TargetKnowledge Target = "knowledge"
	TargetProviders Target = "providers"
)

// ParseTarget accepts "", "all", "knowledge" and "providers".
func ParseTarget(s string) (Target, error) {
	switch Target(s) {
	case TargetAll, "all":
		return TargetAll, nil
	case TargetKnowledge, TargetProviders:
		return Target(s), nil
	}
	return "", fmt.Errorf("unknown index %q (want knowledge or providers)", s)
}

const (
	upsertBatchSize = 100
	embedWorkers    = 4
)

// UpsertResult reports a seed run. Errors holds per-record and per-batch
// failures; they do not stop the run.
type UpsertResult struct {
	Upserted int
	Errors   []error
}

type Pipeline struct {
	chunker   *chunker.SentenceChunker
	embedder  embedding.Embedder
	knowledge vectorstore.Index
	providers vectorstore.Index
	logger    *zap.Logger
}

func NewPipeline(ch *chunker.SentenceChunker, embedder embedding.Embedder, knowledge, providers vectorstore.Index, logger *zap.Logger) *Pipeline {
	if ch == nil {
		ch = chunker.NewSentenceChunker(5, 1)
	}
	return &Pipeline{
		chunker:   ch,
		embedder:  embedder,
		knowledge: knowledge,
		providers: providers,
		logger:    logging.OrNop(logger),
	}
}

// Seed loads paths and upserts their records into the selected indices.
// It fails only when nothing could be loaded.
func (p *Pipeline) Seed(ctx context.Context, paths []string, target Target) (UpsertResult, error) {
	batch, err := p.Load(paths)
	if err != nil {
		return UpsertResult{}, err
	}
	var res UpsertResult
	if target == TargetAll || target == TargetKnowledge {
		res.merge(p.Upsert(ctx, p.knowledge, string(TargetKnowledge), batch.Knowledge))
	}
	if target == TargetAll || target == TargetProviders {
		res.merge(p.Upsert(ctx, p.providers, string(TargetProviders), batch.Providers))
	}
	p.logger.Info("seed finished", zap.Int("upserted", res.Upserted), zap.Int("errors", len(res.Errors)))
	return res, nil
}

// Upsert embeds items concurrently and writes them to idx in batches.
func (p *Pipeline) Upsert(ctx context.Context, idx vectorstore.Index, name string, items []Item) UpsertResult {
	var res UpsertResult
	if len(items) == 0 {
		return res
	}
	if idx == nil {
		res.Errors = append(res.Errors, fmt.Errorf("%s index not configured", name))
		return res
	}

	records := make([]*vectorstore.Record, len(items))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			vec, err := p.embedder.Embed(gctx, item.Text)
			if err == nil && len(vec) == 0 {
				err = errors.New("empty embedding")
			}
			if err != nil {
				mu.Lock()
				res.Errors = append(res.Errors, fmt.Errorf("embed %s/%s: %w", name, item.ID, err))
				mu.Unlock()
				return nil
			}
			records[i] = &vectorstore.Record{ID: item.ID, Vector: vec, Payload: item.Payload}
			return nil
		})
	}
	_ = g.Wait()

	ready := make([]vectorstore.Record, 0, len(records))
	for _, r := range records {
		if r != nil {
			ready = append(ready, *r)
		}
	}
	for start := 0; start < len(ready); start += upsertBatchSize {
		chunk := ready[start:min(start+upsertBatchSize, len(ready))]
		if err := idx.Upsert(ctx, chunk); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("upsert %s [%d:%d]: %w", name, start, start+len(chunk), err))
			continue
		}
		res.Upserted += len(chunk)
	}
	p.logger.Debug("index seeded", zap.String("index", name), zap.Int("upserted", res.Upserted), zap.Int("errors", len(res.Errors)))
	return res
}

func (r *UpsertResult) merge(o UpsertResult) {
	r.Upserted += o.Upserted
	r.Errors = append(r.Errors, o.Errors...)
}
