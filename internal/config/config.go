package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
}

// RequestTimeout is the end-to-end deadline applied to one chat request.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// CompletionConfig holds configuration for the OpenAI-compatible chat
// completions endpoint (OpenRouter by default).
type CompletionConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	Referer     string  `yaml:"referer"`
	Title       string  `yaml:"title"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// IndexConfig selects and configures one similarity index.
type IndexConfig struct {
	Type     string          `yaml:"type"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`
	Memory   *MemoryConfig   `yaml:"memory,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant collection.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	Distance    string `yaml:"distance"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PineconeConfig contains connection details for a Pinecone index.
type PineconeConfig struct {
	Host        string `yaml:"host"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Namespace   string `yaml:"namespace"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MemoryConfig configures the in-process index. SeedFiles are ingested at
// startup.
type MemoryConfig struct {
	SeedFiles []string `yaml:"seed_files"`
}

// PipelineConfig tunes the chat pipeline.
type PipelineConfig struct {
	KnowledgeTopK     int  `yaml:"knowledge_top_k"`
	ProviderTopK      int  `yaml:"provider_top_k"`
	PrefetchProviders bool `yaml:"prefetch_providers"`
}

// ChunkerConfig configures how plain-text knowledge documents are split.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	Completion  CompletionConfig `yaml:"completion"`
	Embedder    EmbedderConfig   `yaml:"embedder"`
	Knowledge   IndexConfig      `yaml:"knowledge_index"`
	Providers   IndexConfig      `yaml:"providers_index"`
	Pipeline    PipelineConfig   `yaml:"pipeline"`
	Chunker     ChunkerConfig    `yaml:"chunker"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/cleanrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/cleanrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnvOverrides(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "cleanrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Environment: "development",
		Embedder:    EmbedderConfig{Type: "openai", OpenAI: &OpenAIEmbedderConfig{}},
		Knowledge:   IndexConfig{Type: "memory", Memory: &MemoryConfig{}},
		Providers:   IndexConfig{Type: "memory", Memory: &MemoryConfig{}},
		Chunker:     ChunkerConfig{Type: "sentence"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = 30
	}
	c := &cfg.Completion
	if c.BaseURL == "" {
		c.BaseURL = "https://openrouter.ai/api/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENROUTER_API_KEY"
	}
	if c.Model == "" {
		c.Model = "openai/gpt-4o-mini"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1500
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 60
	}
	if c.Title == "" {
		c.Title = "Ask-Me Cleaners"
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	}
	applyIndexDefaults(&cfg.Knowledge, "laundry-knowledge")
	applyIndexDefaults(&cfg.Providers, "partner-cleaners")
	if cfg.Pipeline.KnowledgeTopK == 0 {
		cfg.Pipeline.KnowledgeTopK = 3
	}
	if cfg.Pipeline.ProviderTopK == 0 {
		cfg.Pipeline.ProviderTopK = 3
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "sentence"
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
}

func applyIndexDefaults(idx *IndexConfig, collection string) {
	if idx.Type == "" {
		idx.Type = "memory"
	}
	switch idx.Type {
	case "qdrant":
		if idx.Qdrant == nil {
			idx.Qdrant = &QdrantConfig{}
		}
		if idx.Qdrant.URL == "" {
			idx.Qdrant.URL = "http://localhost:6333"
		}
		if idx.Qdrant.Collection == "" {
			idx.Qdrant.Collection = collection
		}
		if idx.Qdrant.Distance == "" {
			idx.Qdrant.Distance = "Cosine"
		}
		if idx.Qdrant.TimeoutSecs == 0 {
			idx.Qdrant.TimeoutSecs = 15
		}
	case "pinecone":
		if idx.Pinecone == nil {
			idx.Pinecone = &PineconeConfig{}
		}
		if idx.Pinecone.APIKeyEnv == "" {
			idx.Pinecone.APIKeyEnv = "PINECONE_API_KEY"
		}
		if idx.Pinecone.TimeoutSecs == 0 {
			idx.Pinecone.TimeoutSecs = 15
		}
	case "memory":
		if idx.Memory == nil {
			idx.Memory = &MemoryConfig{}
		}
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("OPENROUTER_MODEL"); v != "" {
		cfg.Completion.Model = v
	}
	if v := os.Getenv("PINECONE_INDEX_LAUNDRY"); v != "" && cfg.Knowledge.Pinecone != nil {
		cfg.Knowledge.Pinecone.Host = v
	}
	if v := os.Getenv("PINECONE_INDEX_PARTNER"); v != "" && cfg.Providers.Pinecone != nil {
		cfg.Providers.Pinecone.Host = v
	}
}
