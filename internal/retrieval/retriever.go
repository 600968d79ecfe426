// Package retrieval queries the knowledge and partner-provider indices.
// Both lookups are fail-soft: failures are logged and reported through the
// result's Cause, never returned as an error.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"cleanrag/internal/domain"
	"cleanrag/internal/embedding"
	"cleanrag/internal/logging"
	"cleanrag/internal/vectorstore"
)

// ErrEmbeddingUnavailable marks a result produced without an index call
// because no query vector could be obtained.
var ErrEmbeddingUnavailable = errors.New("retrieval: query embedding unavailable")

// Subscription values stored on provider records.
const (
	SubscriptionActive   = "active"
	SubscriptionInactive = "inactive"
)

// QueryEmbedder is the fail-soft embedding contract the retriever relies on.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) embedding.Vector
}

// KnowledgeResult holds knowledge matches. Cause is non-nil when retrieval
// was unavailable; Records is then empty.
type KnowledgeResult struct {
	Records []domain.KnowledgeRecord
	Cause   error
}

// Unavailable reports whether retrieval degraded.
func (r KnowledgeResult) Unavailable() bool { return r.Cause != nil }

// ProviderResult holds provider candidates, with the same Cause convention.
type ProviderResult struct {
	Candidates []domain.ProviderCandidate
	Cause      error
}

func (r ProviderResult) Unavailable() bool { return r.Cause != nil }

// Retriever runs similarity queries against the knowledge and providers
// indices. Either index may be nil, which yields unavailable results.
type Retriever struct {
	embedder  QueryEmbedder
	knowledge vectorstore.Index
	providers vectorstore.Index
	logger    *zap.Logger
}

func New(embedder QueryEmbedder, knowledge, providers vectorstore.Index, logger *zap.Logger) *Retriever {
	return &Retriever{
		embedder:  embedder,
		knowledge: knowledge,
		providers: providers,
		logger:    logging.OrNop(logger),
	}
}

// Knowledge returns up to topK knowledge records nearest to query.
func (r *Retriever) Knowledge(ctx context.Context, query string, topK int) KnowledgeResult {
	if r.knowledge == nil {
		return KnowledgeResult{Cause: errors.New("retrieval: knowledge index not configured")}
	}
	vec := r.embedder.Embed(ctx, query)
	if !vec.Available() {
		return KnowledgeResult{Cause: ErrEmbeddingUnavailable}
	}
	matches, err := r.knowledge.Search(ctx, vec.Values, vectorstore.SearchOptions{TopK: topK})
	if err != nil {
		r.logger.Warn("knowledge search failed", zap.Error(err))
		return KnowledgeResult{Cause: fmt.Errorf("knowledge search: %w", err)}
	}
	records := make([]domain.KnowledgeRecord, 0, len(matches))
	for _, m := range limit(matches, topK) {
		records = append(records, domain.KnowledgeRecord{ID: m.ID, Score: m.Score, Attributes: m.Payload})
	}
	r.logger.Debug("knowledge retrieved", zap.Int("records", len(records)))
	return KnowledgeResult{Records: records}
}

// Providers returns up to topK active partner shops relevant to query,
// restricted to zipcode when one is given.
func (r *Retriever) Providers(ctx context.Context, query, zipcode string, topK int) ProviderResult {
	if r.providers == nil {
		return ProviderResult{Cause: errors.New("retrieval: providers index not configured")}
	}
	vec := r.embedder.Embed(ctx, query)
	if !vec.Available() {
		return ProviderResult{Cause: ErrEmbeddingUnavailable}
	}
	filters := map[string]string{"subscription": SubscriptionActive}
	if zipcode = strings.TrimSpace(zipcode); zipcode != "" {
		filters["zipcode"] = zipcode
	}
	matches, err := r.providers.Search(ctx, vec.Values, vectorstore.SearchOptions{TopK: topK, Filters: filters})
	if err != nil {
		r.logger.Warn("provider search failed", zap.String("zipcode", zipcode), zap.Error(err))
		return ProviderResult{Cause: fmt.Errorf("provider search: %w", err)}
	}
	candidates := make([]domain.ProviderCandidate, 0, len(matches))
	for _, m := range limit(matches, topK) {
		candidates = append(candidates, candidateFromPayload(m.Payload))
	}
	r.logger.Debug("providers retrieved", zap.Int("candidates", len(candidates)), zap.String("zipcode", zipcode))
	return ProviderResult{Candidates: candidates}
}

func limit(matches []vectorstore.Match, topK int) []vectorstore.Match {
	if topK > 0 && len(matches) > topK {
		return matches[:topK]
	}
	return matches
}

func candidateFromPayload(p map[string]any) domain.ProviderCandidate {
	c := domain.ProviderCandidate{
		ShopName:     stringAttr(p, "shop_name"),
		Zipcode:      stringAttr(p, "zipcode"),
		Subscription: stringAttr(p, "subscription"),
		Specialty:    stringsAttr(p, "specialty"),
	}
	if c.ShopName == "" {
		c.ShopName = "Unknown Shop"
	}
	if c.Subscription == "" {
		c.Subscription = SubscriptionActive
	}
	switch v := p["rating"].(type) {
	case float64:
		c.Rating = &v
	case float32:
		f := float64(v)
		c.Rating = &f
	case int:
		f := float64(v)
		c.Rating = &f
	}
	return c
}

func stringAttr(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func stringsAttr(p map[string]any, key string) []string {
	out := []string{}
	switch v := p[key].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
