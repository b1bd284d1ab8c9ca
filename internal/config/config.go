// Package config loads runtime configuration for the RAG service from
// environment variables (with optional .env overrides) and an optional
// YAML overlay, following the same env-first pattern the rest of the
// stack uses for provider credentials.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// EmbeddingConfig configures the HTTP embedding service client (C2).
type EmbeddingConfig struct {
	BaseURL      string            `yaml:"base_url"`
	Path         string            `yaml:"path"`
	Model        string            `yaml:"model"`
	APIHeader    string            `yaml:"api_header"`
	APIKey       string            `yaml:"api_key"`
	Headers      map[string]string `yaml:"headers"`
	Timeout      int               `yaml:"timeout_seconds"`
	Dimension    int               `yaml:"dimension"`
	MaxBatchSize int               `yaml:"max_batch_size"`
}

// RetrievalConfig tunes the retrieval strategies (C10-C13).
type RetrievalConfig struct {
	DefaultTopK        int     `yaml:"default_top_k"`
	MaxTopK            int     `yaml:"max_top_k"`
	BM25K1             float64 `yaml:"bm25_k1"`
	BM25B              float64 `yaml:"bm25_b"`
	DenseThreshold     float64 `yaml:"dense_threshold"`
	HybridAlpha        float64 `yaml:"hybrid_alpha"`
	HybridBeta         float64 `yaml:"hybrid_beta"`
	HybridIntermediate int     `yaml:"hybrid_intermediate_k"`
	RRFConstant        int     `yaml:"rrf_constant"`
	FusionMethod       string  `yaml:"fusion_method"` // "weighted" | "rrf"
}

// ContextConfig tunes the context assembler (C14).
type ContextConfig struct {
	BudgetFraction   float64 `yaml:"budget_fraction"` // fraction of model context window
	PromptOverhead   int     `yaml:"prompt_overhead_tokens"`
	MinPassageTokens int     `yaml:"min_passage_tokens"`
}

// TimeoutConfig holds per-component network timeouts (§5).
type TimeoutConfig struct {
	Embedding time.Duration `yaml:"-"`
	Lexical   time.Duration `yaml:"-"`
	Vector    time.Duration `yaml:"-"`
	LLM       time.Duration `yaml:"-"`
	Query     time.Duration `yaml:"-"`
}

// LLMClientConfig selects and configures the LLM provider facade (C16).
type LLMClientConfig struct {
	Provider    string  `yaml:"provider"` // openai | anthropic | google | local
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Google    GoogleConfig    `yaml:"google"`
}

// OpenAIConfig configures the OpenAI-compatible chat client, also used for
// self-hosted OpenAI-protocol servers via BaseURL/API overrides.
type OpenAIConfig struct {
	APIKey      string         `yaml:"api_key"`
	Model       string         `yaml:"model"`
	BaseURL     string         `yaml:"base_url"`
	API         string         `yaml:"api"` // "completions" (default) or "responses"
	ExtraParams map[string]any `yaml:"extra_params"`
	LogPayloads bool           `yaml:"log_payloads"`
}

// AnthropicPromptCacheConfig controls Anthropic prompt-cache breakpoints.
type AnthropicPromptCacheConfig struct {
	Enabled       bool `yaml:"enabled"`
	CacheSystem   bool `yaml:"cache_system"`
	CacheTools    bool `yaml:"cache_tools"`
	CacheMessages bool `yaml:"cache_messages"`
}

// AnthropicConfig configures the Anthropic Messages API client.
type AnthropicConfig struct {
	APIKey      string                     `yaml:"api_key"`
	Model       string                     `yaml:"model"`
	BaseURL     string                     `yaml:"base_url"`
	PromptCache AnthropicPromptCacheConfig `yaml:"prompt_cache"`
	ExtraParams map[string]any             `yaml:"extra_params"`
}

// GoogleConfig configures the Gemini (genai) client.
type GoogleConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout_seconds"`
}

// ObsConfig controls ambient logging/tracing.
type ObsConfig struct {
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	LogPath     string `yaml:"log_path"`
	OTelEnabled bool   `yaml:"otel_enabled"`
	OTelEndpoint string `yaml:"otel_endpoint"`
}

// IndexingConfig tunes the indexing orchestrator (C8).
type IndexingConfig struct {
	MaxWorkers      int `yaml:"max_workers"`
	ChunkWindow     int `yaml:"chunk_window"`
	ChunkOverlap    int `yaml:"chunk_overlap"`
	MaxEmbedBatch   int `yaml:"max_embed_batch"`
}

// Config is the root configuration object for the RAG service.
type Config struct {
	DataPath  string           `yaml:"data_path"`
	Database  string           `yaml:"database_dsn"`
	Qdrant    string           `yaml:"qdrant_dsn"`
	Embedding EmbeddingConfig  `yaml:"embedding"`
	Retrieval RetrievalConfig  `yaml:"retrieval"`
	Context   ContextConfig    `yaml:"context"`
	LLMClient LLMClientConfig  `yaml:"llm_client"`
	Obs       ObsConfig        `yaml:"obs"`
	Indexing  IndexingConfig   `yaml:"indexing"`
	Timeouts  TimeoutConfig    `yaml:"-"`
	Templates string           `yaml:"template_dir"`
}

// Load reads configuration from environment variables (optionally from a
// .env file) and applies defaults. Overload lets a local .env take
// precedence over pre-existing process environment variables, matching the
// teacher's development-time convenience behavior.
func Load() (Config, error) {
	_ = godotenv.Overload()

	var cfg Config
	cfg.DataPath = strings.TrimSpace(os.Getenv("RAG_DATA_PATH"))
	cfg.Database = strings.TrimSpace(os.Getenv("RAG_DATABASE_DSN"))
	cfg.Qdrant = strings.TrimSpace(os.Getenv("RAG_QDRANT_DSN"))
	cfg.Templates = strings.TrimSpace(os.Getenv("RAG_TEMPLATE_DIR"))

	cfg.Embedding.BaseURL = strings.TrimSpace(os.Getenv("EMBEDDING_BASE_URL"))
	cfg.Embedding.Path = envOr("EMBEDDING_PATH", "/v1/embeddings")
	cfg.Embedding.Model = strings.TrimSpace(os.Getenv("EMBEDDING_MODEL"))
	cfg.Embedding.APIHeader = envOr("EMBEDDING_API_HEADER", "Authorization")
	cfg.Embedding.APIKey = strings.TrimSpace(os.Getenv("EMBEDDING_API_KEY"))
	cfg.Embedding.Dimension = envInt("EMBEDDING_DIMENSION", 384)
	cfg.Embedding.MaxBatchSize = envInt("EMBEDDING_MAX_BATCH", 32)
	cfg.Embedding.Timeout = envInt("EMBEDDING_TIMEOUT_SECONDS", 5)

	cfg.Retrieval.DefaultTopK = envInt("RETRIEVAL_DEFAULT_TOP_K", 10)
	cfg.Retrieval.MaxTopK = envInt("RETRIEVAL_MAX_TOP_K", 100)
	cfg.Retrieval.BM25K1 = envFloat("RETRIEVAL_BM25_K1", 1.2)
	cfg.Retrieval.BM25B = envFloat("RETRIEVAL_BM25_B", 0.75)
	cfg.Retrieval.DenseThreshold = envFloat("RETRIEVAL_DENSE_THRESHOLD", 0.5)
	cfg.Retrieval.HybridAlpha = envFloat("RETRIEVAL_HYBRID_ALPHA", 0.5)
	cfg.Retrieval.HybridBeta = envFloat("RETRIEVAL_HYBRID_BETA", 0.5)
	cfg.Retrieval.HybridIntermediate = envInt("RETRIEVAL_HYBRID_INTERMEDIATE_K", 50)
	cfg.Retrieval.RRFConstant = envInt("RETRIEVAL_RRF_CONSTANT", 60)
	cfg.Retrieval.FusionMethod = envOr("RETRIEVAL_FUSION_METHOD", "weighted")

	cfg.Context.BudgetFraction = envFloat("CONTEXT_BUDGET_FRACTION", 0.7)
	cfg.Context.PromptOverhead = envInt("CONTEXT_PROMPT_OVERHEAD_TOKENS", 512)
	cfg.Context.MinPassageTokens = envInt("CONTEXT_MIN_PASSAGE_TOKENS", 50)

	cfg.Indexing.MaxWorkers = envInt("INDEXING_MAX_WORKERS", 4)
	cfg.Indexing.ChunkWindow = envInt("INDEXING_CHUNK_WINDOW", 500)
	cfg.Indexing.ChunkOverlap = envInt("INDEXING_CHUNK_OVERLAP", 50)
	cfg.Indexing.MaxEmbedBatch = envInt("INDEXING_MAX_EMBED_BATCH", 32)

	cfg.LLMClient.Provider = strings.ToLower(envOr("LLM_PROVIDER", "openai"))
	cfg.LLMClient.Model = strings.TrimSpace(os.Getenv("LLM_MODEL"))
	cfg.LLMClient.Temperature = envFloat("LLM_TEMPERATURE", 0.2)
	cfg.LLMClient.MaxTokens = envInt("LLM_MAX_TOKENS", 1024)
	cfg.LLMClient.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.LLMClient.Anthropic.Model = os.Getenv("ANTHROPIC_MODEL")
	cfg.LLMClient.Anthropic.BaseURL = os.Getenv("ANTHROPIC_BASE_URL")
	cfg.LLMClient.Anthropic.PromptCache.Enabled = envBool("ANTHROPIC_PROMPT_CACHE_ENABLED", false)

	cfg.LLMClient.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.LLMClient.OpenAI.Model = os.Getenv("OPENAI_MODEL")
	cfg.LLMClient.OpenAI.BaseURL = os.Getenv("OPENAI_BASE_URL")
	cfg.LLMClient.OpenAI.API = envOr("OPENAI_API_MODE", "completions")

	cfg.LLMClient.Google.APIKey = os.Getenv("GOOGLE_API_KEY")
	cfg.LLMClient.Google.Model = os.Getenv("GOOGLE_MODEL")
	cfg.LLMClient.Google.BaseURL = os.Getenv("GOOGLE_BASE_URL")
	cfg.LLMClient.Google.Timeout = envInt("GOOGLE_TIMEOUT_SECONDS", 30)

	cfg.Obs.ServiceName = envOr("OBS_SERVICE_NAME", "ragforge")
	cfg.Obs.Environment = envOr("OBS_ENVIRONMENT", "dev")
	cfg.Obs.LogLevel = envOr("OBS_LOG_LEVEL", "info")
	cfg.Obs.LogPath = strings.TrimSpace(os.Getenv("OBS_LOG_PATH"))
	cfg.Obs.OTelEnabled = envBool("OBS_OTEL_ENABLED", false)
	cfg.Obs.OTelEndpoint = strings.TrimSpace(os.Getenv("OBS_OTEL_ENDPOINT"))

	if err := applyOverlay(&cfg); err != nil {
		return Config{}, err
	}

	applyDefaults(&cfg)
	return cfg, nil
}

// applyOverlay merges a YAML file pointed to by RAG_CONFIG_FILE on top of
// the env-derived configuration, when present. Missing files are ignored.
func applyOverlay(cfg *Config) error {
	path := strings.TrimSpace(os.Getenv("RAG_CONFIG_FILE"))
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config overlay %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config overlay %q: %w", path, err)
	}
	log.Info().Str("path", path).Msg("config overlay applied")
	return nil
}

func applyDefaults(cfg *Config) {
	switch cfg.LLMClient.Provider {
	case "openai", "anthropic", "google", "local":
	case "":
		cfg.LLMClient.Provider = "openai"
	default:
		log.Warn().Str("provider", cfg.LLMClient.Provider).Msg("unknown llm provider, defaulting to openai")
		cfg.LLMClient.Provider = "openai"
	}
	if cfg.Retrieval.HybridAlpha+cfg.Retrieval.HybridBeta == 0 {
		cfg.Retrieval.HybridAlpha, cfg.Retrieval.HybridBeta = 0.5, 0.5
	}
	cfg.Timeouts = TimeoutConfig{
		Embedding: 5 * time.Second,
		Lexical:   5 * time.Second,
		Vector:    5 * time.Second,
		LLM:       30 * time.Second,
		Query:     60 * time.Second,
	}
	if cfg.Templates == "" {
		cfg.Templates = "./templates"
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
