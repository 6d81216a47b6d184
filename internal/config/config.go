package config

import (
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "WITSYNC"

const (
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	Store       string `envconfig:"STORE" default:"bolt"`
	BoltPath    string `envconfig:"BOLT_PATH" default:"data/witsync.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	DevOpsBaseURL string `envconfig:"DEVOPS_BASE_URL" default:"https://dev.azure.com"`
	DevOpsOrg     string `envconfig:"DEVOPS_ORG"`
	DevOpsProject string `envconfig:"DEVOPS_PROJECT"`
	DevOpsPAT     string `envconfig:"DEVOPS_PAT"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	MentionsFile           string `envconfig:"MENTIONS_FILE"`
	AttachmentPlaceholders bool   `envconfig:"ATTACHMENT_PLACEHOLDERS" default:"false"`

	MainChunkWords    int           `envconfig:"MAIN_CHUNK_WORDS" default:"500"`
	CommentChunkWords int           `envconfig:"COMMENT_CHUNK_WORDS" default:"200"`
	SyncLookback      time.Duration `envconfig:"SYNC_LOOKBACK" default:"72h"`
	SyncInterval      time.Duration `envconfig:"SYNC_INTERVAL" default:"1h"`
	InitialSince      string        `envconfig:"INITIAL_SINCE"`
	ReconcileMode     string        `envconfig:"RECONCILE_MODE" default:"diff"`
	CheckpointDir     string        `envconfig:"CHECKPOINT_DIR"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"witsync-checkpoints"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Prefix    string `envconfig:"S3_PREFIX"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks values envconfig cannot express as tags.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreBolt:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%s_DATABASE_URL is required when %s_STORE=postgres", envPrefix, envPrefix)
		}
	default:
		return fmt.Errorf("unknown %s_STORE %q", envPrefix, c.Store)
	}

	if c.InitialSince != "" {
		if _, ok := domain.ParseTimestamp(c.InitialSince); !ok {
			return domain.ErrInvalidTimestamp.Wrap(fmt.Errorf("%s_INITIAL_SINCE %q", envPrefix, c.InitialSince))
		}
	}

	switch c.ReconcileMode {
	case "", "diff", "replace", "upsert":
	default:
		return domain.ErrInvalidReconcileMode.Wrap(fmt.Errorf("%s_RECONCILE_MODE %q", envPrefix, c.ReconcileMode))
	}

	if c.MainChunkWords <= 0 || c.CommentChunkWords <= 0 {
		return fmt.Errorf("chunk word limits must be positive")
	}

	return nil
}

func (c *Config) UsePostgres() bool {
	return c.Store == StorePostgres
}

func (c *Config) HasDevOps() bool {
	return c.DevOpsOrg != "" && c.DevOpsProject != "" && c.DevOpsPAT != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// InitialSinceTime returns the parsed INITIAL_SINCE, or the zero time.
func (c *Config) InitialSinceTime() time.Time {
	t, _ := domain.ParseTimestamp(c.InitialSince)
	return t
}

// SlogLevel maps LOG_LEVEL to a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
