package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cleanrag/internal/completion"
	"cleanrag/internal/domain"
	"cleanrag/internal/logging"
	"cleanrag/internal/metadata"
	"cleanrag/internal/metrics"
	"cleanrag/internal/policy"
	"cleanrag/internal/retrieval"
)

// DefaultTopK is used for both lookups when Options leaves it unset.
const DefaultTopK = 3

// ErrInvalidQuery wraps validation failures of the incoming query.
var ErrInvalidQuery = errors.New("invalid query")

// Completer produces the model answer for a message and optional context.
type Completer interface {
	Complete(ctx context.Context, userText, knowledgeContext string) (*completion.Result, error)
}

// Retriever is the fail-soft lookup side of the pipeline.
type Retriever interface {
	Knowledge(ctx context.Context, query string, topK int) retrieval.KnowledgeResult
	Providers(ctx context.Context, query, zipcode string, topK int) retrieval.ProviderResult
}

type Options struct {
	KnowledgeTopK int
	ProviderTopK  int
	// PrefetchProviders runs the provider lookup alongside the completion.
	// The policy still decides whether the candidates are returned.
	PrefetchProviders bool
}

type ChatService struct {
	retriever Retriever
	completer Completer
	opts      Options
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewChatService(retriever Retriever, completer Completer, opts Options, m *metrics.Metrics, logger *zap.Logger) *ChatService {
	if opts.KnowledgeTopK <= 0 {
		opts.KnowledgeTopK = DefaultTopK
	}
	if opts.ProviderTopK <= 0 {
		opts.ProviderTopK = DefaultTopK
	}
	return &ChatService{
		retriever: retriever,
		completer: completer,
		opts:      opts,
		metrics:   m,
		logger:    logging.OrNop(logger),
	}
}

// ProcessChat answers one query. Only completion failures are returned as
// errors; retrieval problems degrade the reply instead.
func (s *ChatService) ProcessChat(ctx context.Context, q domain.Query) (*domain.ChatReply, error) {
	start := time.Now()
	if err := q.Validate(); err != nil {
		s.metrics.ObserveChat("invalid", time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	knowledge := s.retriever.Knowledge(ctx, q.Message, s.opts.KnowledgeTopK)
	if knowledge.Unavailable() {
		s.metrics.RetrievalDegraded("knowledge")
		s.logger.Info("answering without knowledge context", zap.Error(knowledge.Cause))
	}
	knowledgeContext := retrieval.FormatKnowledgeAsContext(knowledge.Records)

	var (
		res        *completion.Result
		prefetched *retrieval.ProviderResult
		err        error
	)
	if s.opts.PrefetchProviders {
		res, prefetched, err = s.completeWithPrefetch(ctx, q, knowledgeContext)
	} else {
		res, err = s.completer.Complete(ctx, q.Message, knowledgeContext)
	}
	if err != nil {
		s.recordCompletionFailure(err, time.Since(start))
		return nil, err
	}

	md, answer := metadata.Extract(res.Text)
	decision := policy.Decide(policy.Input{Message: q.Message, Metadata: md})
	s.metrics.Recommended(string(decision.Reason))

	shops := []domain.ProviderCandidate{}
	if decision.Recommend {
		var providers retrieval.ProviderResult
		if prefetched != nil {
			providers = *prefetched
		} else {
			providers = s.retriever.Providers(ctx, q.Message, q.Zipcode, s.opts.ProviderTopK)
		}
		if providers.Unavailable() {
			s.metrics.RetrievalDegraded("providers")
			s.logger.Info("recommendation without partner shops", zap.Error(providers.Cause))
		}
		shops = append(shops, providers.Candidates...)
	}

	s.logger.Debug("chat processed",
		zap.Int("knowledge_records", len(knowledge.Records)),
		zap.String("recommend_reason", string(decision.Reason)),
		zap.Int("shops", len(shops)),
		zap.Duration("elapsed", time.Since(start)),
	)
	s.metrics.ObserveChat("ok", time.Since(start))

	return &domain.ChatReply{
		Answer:           answer,
		SuccessRate:      md.SuccessRate,
		RiskLevel:        md.RiskLevel,
		RecommendedShops: shops,
		Disclaimer:       domain.Disclaimer,
	}, nil
}

// completeWithPrefetch runs the completion and the provider lookup
// concurrently. A completion failure cancels the lookup.
func (s *ChatService) completeWithPrefetch(ctx context.Context, q domain.Query, knowledgeContext string) (*completion.Result, *retrieval.ProviderResult, error) {
	g, gctx := errgroup.WithContext(ctx)

	var providers retrieval.ProviderResult
	g.Go(func() error {
		providers = s.retriever.Providers(gctx, q.Message, q.Zipcode, s.opts.ProviderTopK)
		return nil
	})

	var res *completion.Result
	g.Go(func() error {
		var err error
		res, err = s.completer.Complete(gctx, q.Message, knowledgeContext)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return res, &providers, nil
}

func (s *ChatService) recordCompletionFailure(err error, elapsed time.Duration) {
	kind := "other"
	switch k := completion.KindOf(err); {
	case errors.Is(k, completion.ErrConfiguration):
		kind = "configuration"
	case errors.Is(k, completion.ErrAuth):
		kind = "auth"
	case errors.Is(k, completion.ErrRateLimited):
		kind = "rate_limited"
	case errors.Is(k, completion.ErrBadRequest):
		kind = "bad_request"
	case errors.Is(k, completion.ErrUpstream):
		kind = "upstream"
	}
	s.metrics.CompletionFailed(kind)
	s.metrics.ObserveChat("completion_error", elapsed)
	s.logger.Warn("completion failed", zap.String("kind", kind), zap.Error(err))
}
