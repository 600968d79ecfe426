package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cleanrag/internal/config"
	"cleanrag/internal/vectorstore/memory"
	"cleanrag/internal/vectorstore/pinecone"
	"cleanrag/internal/vectorstore/qdrant"
)

func TestBuildIndex(t *testing.T) {
	idx, err := buildIndex("knowledge", config.IndexConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &memory.Storage{}, idx)

	idx, err = buildIndex("knowledge", config.IndexConfig{Type: "qdrant", Qdrant: &config.QdrantConfig{URL: "http://localhost:6333", Collection: "k"}})
	require.NoError(t, err)
	assert.IsType(t, &qdrant.Storage{}, idx)

	idx, err = buildIndex("providers", config.IndexConfig{Type: "pinecone", Pinecone: &config.PineconeConfig{Host: "partner.svc.pinecone.io"}})
	require.NoError(t, err)
	assert.IsType(t, &pinecone.Storage{}, idx)

	_, err = buildIndex("providers", config.IndexConfig{Type: "pinecone"})
	assert.ErrorContains(t, err, "pinecone host missing")

	_, err = buildIndex("providers", config.IndexConfig{Type: "redis"})
	assert.ErrorContains(t, err, "unknown type")
}

func TestBuildEmbedder(t *testing.T) {
	_, err := buildEmbedder(config.EmbedderConfig{Type: "openai"})
	assert.Error(t, err)

	_, err = buildEmbedder(config.EmbedderConfig{Type: "tfidf"})
	assert.ErrorContains(t, err, "unknown embedder")
}

func TestBuildApp_MemorySeedFailsWithoutEmbeddings(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte("knowledge:\n  - id: a\n    title: t\n    content: c\n"), 0o600))
	t.Setenv("TEST_WIRE_EMBED_KEY", "")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	cfg.Embedder.OpenAI.APIKeyEnv = "TEST_WIRE_EMBED_KEY"
	cfg.Knowledge.Memory.SeedFiles = []string{seed}

	a, err := buildApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, a.knowledge.(*memory.Storage).Len())
	assert.NotNil(t, a.chatService())
}
