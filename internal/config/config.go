package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

const (
	EmbeddingGemini = "gemini"
	EmbeddingOllama = "ollama"
	EmbeddingHash   = "hash"

	IndexSQLite   = "sqlite"
	IndexPostgres = "postgres"
)

type Config struct {
	// Server
	ServerPort   int      `envconfig:"SERVER_PORT" default:"8081"`
	CORSOrigins  []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://127.0.0.1:5173"`
	QueryLogPath string   `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	LogLevel     string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"LOG_FORMAT" default:"json"`

	// Reasoning engine
	GeminiAPIKey         string  `envconfig:"GEMINI_API_KEY"`
	ReasoningModel       string  `envconfig:"REASONING_MODEL" default:"gemini-1.5-pro"`
	ReasoningTemperature float32 `envconfig:"REASONING_TEMPERATURE" default:"0.1"`

	// Embeddings
	EmbeddingProvider   string `envconfig:"EMBEDDING_PROVIDER" default:"gemini"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"384"`
	OllamaURL           string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`

	// Corpus and index
	CorpusDir        string `envconfig:"CORPUS_DIR"`
	ChunkSize        int    `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap     int    `envconfig:"CHUNK_OVERLAP" default:"150"`
	EmbedConcurrency int    `envconfig:"EMBED_CONCURRENCY" default:"4"`
	IndexDriver      string `envconfig:"INDEX_DRIVER" default:"sqlite"`
	IndexPath        string `envconfig:"INDEX_PATH" default:"./data/index.db"`
	IndexDSN         string `envconfig:"INDEX_DSN"`

	// Retrieval
	RetrievalTopK  int    `envconfig:"RETRIEVAL_TOP_K" default:"3"`
	RerankProvider string `envconfig:"RERANK_PROVIDER" default:"none"`
	RerankAPIKey   string `envconfig:"RERANK_API_KEY"`

	// Agent
	AgentMaxIterations  int `envconfig:"AGENT_MAX_ITERATIONS" default:"6"`
	MaxObservationChars int `envconfig:"MAX_OBSERVATION_CHARS" default:"6000"`

	// Events
	NSQDHost string `envconfig:"NSQD_HOST"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.EmbeddingProvider {
	case EmbeddingGemini:
		// A missing GEMINI_API_KEY surfaces at startup as a degraded health
		// status rather than a config error.
	case EmbeddingOllama:
		if c.OllamaURL == "" {
			return fmt.Errorf("%w: OLLAMA_URL", ErrMissingRequired)
		}
	case EmbeddingHash:
		if c.EmbeddingDimensions < 1 {
			return fmt.Errorf("%w: EMBEDDING_DIMENSIONS must be positive", ErrInvalidValue)
		}
	default:
		return fmt.Errorf("%w: EMBEDDING_PROVIDER %q", ErrInvalidValue, c.EmbeddingProvider)
	}

	switch c.IndexDriver {
	case IndexSQLite:
		if c.IndexPath == "" {
			return fmt.Errorf("%w: INDEX_PATH", ErrMissingRequired)
		}
	case IndexPostgres:
		if c.IndexDSN == "" {
			return fmt.Errorf("%w: INDEX_DSN", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: INDEX_DRIVER %q", ErrInvalidValue, c.IndexDriver)
	}

	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive", ErrInvalidValue)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be in [0, CHUNK_SIZE)", ErrInvalidValue)
	}
	if c.AgentMaxIterations < 1 {
		return fmt.Errorf("%w: AGENT_MAX_ITERATIONS must be at least 1", ErrInvalidValue)
	}
	if c.RetrievalTopK < 1 {
		return fmt.Errorf("%w: RETRIEVAL_TOP_K must be at least 1", ErrInvalidValue)
	}
	switch strings.ToLower(c.RerankProvider) {
	case "", "none", "jina", "cohere":
	default:
		return fmt.Errorf("%w: RERANK_PROVIDER %q", ErrInvalidValue, c.RerankProvider)
	}
	return nil
}
