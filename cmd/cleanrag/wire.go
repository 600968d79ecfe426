package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"cleanrag/internal/chunker"
	"cleanrag/internal/completion"
	"cleanrag/internal/config"
	"cleanrag/internal/embedding"
	"cleanrag/internal/embedding/openai"
	"cleanrag/internal/ingest"
	"cleanrag/internal/metrics"
	"cleanrag/internal/retrieval"
	"cleanrag/internal/service"
	"cleanrag/internal/vectorstore"
	"cleanrag/internal/vectorstore/memory"
	"cleanrag/internal/vectorstore/pinecone"
	"cleanrag/internal/vectorstore/qdrant"
)

// app holds the assembled components shared by the subcommands.
type app struct {
	cfg       *config.AppConfig
	logger    *zap.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	embedder  embedding.Embedder
	knowledge vectorstore.Index
	providers vectorstore.Index
}

func buildApp(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*app, error) {
	switch cfg.Chunker.Type {
	case "sentence", "":
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}
	emb, err := buildEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	knowledge, err := buildIndex("knowledge", cfg.Knowledge)
	if err != nil {
		return nil, err
	}
	providers, err := buildIndex("providers", cfg.Providers)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &app{
		cfg:       cfg,
		logger:    logger,
		registry:  reg,
		metrics:   metrics.New(reg),
		embedder:  emb,
		knowledge: knowledge,
		providers: providers,
	}
	if err := a.seedMemoryIndexes(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func buildEmbedder(ec config.EmbedderConfig) (embedding.Embedder, error) {
	switch ec.Type {
	case "openai", "":
		if ec.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:   ec.OpenAI.BaseURL,
			APIKeyEnv: ec.OpenAI.APIKeyEnv,
			Model:     ec.OpenAI.Model,
			Timeout:   time.Duration(ec.OpenAI.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", ec.Type)
	}
}

func buildIndex(name string, ic config.IndexConfig) (vectorstore.Index, error) {
	switch ic.Type {
	case "memory", "":
		return memory.NewStorage(), nil
	case "qdrant":
		if ic.Qdrant == nil {
			return nil, fmt.Errorf("%s index: qdrant config missing", name)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        ic.Qdrant.URL,
			APIKeyEnv:  ic.Qdrant.APIKeyEnv,
			Collection: ic.Qdrant.Collection,
			Distance:   ic.Qdrant.Distance,
			Timeout:    time.Duration(ic.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	case "pinecone":
		if ic.Pinecone == nil || ic.Pinecone.Host == "" {
			return nil, fmt.Errorf("%s index: pinecone host missing", name)
		}
		return pinecone.NewStorage(pinecone.Config{
			Host:      ic.Pinecone.Host,
			APIKeyEnv: ic.Pinecone.APIKeyEnv,
			Namespace: ic.Pinecone.Namespace,
			Timeout:   time.Duration(ic.Pinecone.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("%s index: unknown type %s", name, ic.Type)
	}
}

// seedMemoryIndexes loads memory.seed_files into in-process indices, since
// they start empty on every run.
func (a *app) seedMemoryIndexes(ctx context.Context) error {
	for _, s := range []struct {
		target ingest.Target
		ic     config.IndexConfig
	}{
		{ingest.TargetKnowledge, a.cfg.Knowledge},
		{ingest.TargetProviders, a.cfg.Providers},
	} {
		if s.ic.Type != "memory" || s.ic.Memory == nil || len(s.ic.Memory.SeedFiles) == 0 {
			continue
		}
		res, err := a.ingestPipeline().Seed(ctx, s.ic.Memory.SeedFiles, s.target)
		if err != nil {
			return fmt.Errorf("seed %s index: %w", s.target, err)
		}
		for _, e := range res.Errors {
			a.logger.Warn("seed record skipped", zap.String("index", string(s.target)), zap.Error(e))
		}
		a.logger.Info("memory index seeded", zap.String("index", string(s.target)), zap.Int("records", res.Upserted))
	}
	return nil
}

func (a *app) ingestPipeline() *ingest.Pipeline {
	ch := chunker.NewSentenceChunker(a.cfg.Chunker.SentencesPerChunk, a.cfg.Chunker.OverlapSentences)
	return ingest.NewPipeline(ch, a.embedder, a.knowledge, a.providers, a.logger)
}

func (a *app) chatService() *service.ChatService {
	cc := a.cfg.Completion
	completer := completion.NewClient(completion.Config{
		BaseURL:     cc.BaseURL,
		APIKeyEnv:   cc.APIKeyEnv,
		Model:       cc.Model,
		Temperature: cc.Temperature,
		MaxTokens:   cc.MaxTokens,
		Timeout:     time.Duration(cc.TimeoutSecs) * time.Second,
		Referer:     cc.Referer,
		Title:       cc.Title,
	}, a.logger)
	r := retrieval.New(embedding.NewAdapter(a.embedder, a.logger), a.knowledge, a.providers, a.logger)
	return service.NewChatService(r, completer, service.Options{
		KnowledgeTopK:     a.cfg.Pipeline.KnowledgeTopK,
		ProviderTopK:      a.cfg.Pipeline.ProviderTopK,
		PrefetchProviders: a.cfg.Pipeline.PrefetchProviders,
	}, a.metrics, a.logger)
}
