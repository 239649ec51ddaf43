// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

// Condense policies for narrative fields. The original system applied
// the summarizer inconsistently; here it is an explicit knob.
const (
	CondenseAlways    = "always"
	CondenseWhenFound = "when-found"
	CondenseNever     = "never"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`
	// DBURL enables the Postgres match store; empty keeps the in-memory store.
	DBURL string `env:"DB_URL"`
	// RedisURL enables the embedding cache decorator; empty disables it.
	RedisURL      string        `env:"REDIS_URL"`
	EmbedCacheTTL time.Duration `env:"EMBED_CACHE_TTL" envDefault:"24h"`

	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	EmbeddingsModel string `env:"EMBEDDINGS_MODEL" envDefault:"text-embedding-3-small"`
	// EmbeddingDim is the provider's vector dimensionality; blank fields
	// map to the zero vector of this length.
	EmbeddingDim int `env:"EMBEDDING_DIM" envDefault:"1536"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`

	QdrantURL        string `env:"QDRANT_URL"`
	QdrantAPIKey     string `env:"QDRANT_API_KEY"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"record-fields"`

	// TikaURL specifies the Apache Tika server used for text extraction.
	TikaURL string `env:"TIKA_URL" envDefault:"http://tika:9998"`

	// Evaluator orchestration
	EvalTimeout     time.Duration `env:"EVAL_TIMEOUT" envDefault:"30s"`
	MaxPromptTokens int           `env:"MAX_PROMPT_TOKENS" envDefault:"6000"`
	ReasonMaxChars  int           `env:"REASON_MAX_CHARS" envDefault:"400"`

	// Ranking defaults
	TopKDefault        int `env:"TOP_K_DEFAULT" envDefault:"5"`
	ExplainTopNDefault int `env:"EXPLAIN_TOP_N_DEFAULT" envDefault:"3"`

	// Normalizer
	CondensePolicy       string `env:"CONDENSE_POLICY" envDefault:"when-found"`
	NarrativeBudgetChars int    `env:"NARRATIVE_BUDGET_CHARS" envDefault:"600"`
	SkipEmptyCandidates  bool   `env:"SKIP_EMPTY_CANDIDATES" envDefault:"false"`

	// WeightSpecFile optionally overrides the canonical weight table (YAML).
	WeightSpecFile string `env:"WEIGHT_SPEC_FILE"`

	// Embedding-provider retry backoff
	AIBackoffMaxElapsedTime  time.Duration `env:"AI_BACKOFF_MAX_ELAPSED_TIME" envDefault:"90s"`
	AIBackoffInitialInterval time.Duration `env:"AI_BACKOFF_INITIAL_INTERVAL" envDefault:"2s"`
	AIBackoffMaxInterval     time.Duration `env:"AI_BACKOFF_MAX_INTERVAL" envDefault:"20s"`
	AIBackoffMultiplier      float64       `env:"AI_BACKOFF_MULTIPLIER" envDefault:"1.5"`

	// HTTP server
	MaxUploadMB           int64         `env:"MAX_UPLOAD_MB" envDefault:"10"`
	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"30"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"resume-match-engine"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	switch cfg.CondensePolicy {
	case CondenseAlways, CondenseWhenFound, CondenseNever:
	default:
		return Config{}, fmt.Errorf("op=config.Load: %w: condense policy %q", domain.ErrInvalidArgument, cfg.CondensePolicy)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// GetAIBackoffConfig returns backoff settings for the current environment.
// Test environments use short intervals so suites stay fast.
func (c Config) GetAIBackoffConfig() (maxElapsedTime, initialInterval, maxInterval time.Duration, multiplier float64) {
	if c.IsTest() {
		return 2 * time.Second, 50 * time.Millisecond, 500 * time.Millisecond, 2.0
	}
	return c.AIBackoffMaxElapsedTime, c.AIBackoffInitialInterval, c.AIBackoffMaxInterval, c.AIBackoffMultiplier
}

// weightSpecFile is the YAML shape for a weight-table override.
type weightSpecFile struct {
	Weights []domain.WeightPair `yaml:"weights"`
}

// LoadWeightSpec returns the weight table configured via WeightSpecFile,
// or the canonical default when no file is set. The loaded spec is
// validated; an invalid file is an error, not a silent fallback.
func (c Config) LoadWeightSpec(canonical domain.WeightedScoreSpec) (domain.WeightedScoreSpec, error) {
	if c.WeightSpecFile == "" {
		return canonical, nil
	}
	b, err := os.ReadFile(c.WeightSpecFile)
	if err != nil {
		return nil, fmt.Errorf("op=config.LoadWeightSpec: %w", err)
	}
	var f weightSpecFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("op=config.LoadWeightSpec: %w", err)
	}
	spec := domain.WeightedScoreSpec(f.Weights)
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("op=config.LoadWeightSpec: %w", err)
	}
	return spec, nil
}
