package config

import (
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds the configuration of all binaries.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	YouTube struct {
		APIKey           string        `envconfig:"YOUTUBE_API_KEY"`
		BaseURL          string        `envconfig:"YOUTUBE_API_BASE_URL" default:"https://www.googleapis.com/youtube/v3"`
		Timeout          time.Duration `envconfig:"YOUTUBE_API_TIMEOUT" default:"30s"`
		CommentsPerVideo int           `envconfig:"YOUTUBE_COMMENTS_PER_VIDEO" default:"200"`
	} `envconfig:""`

	// Channels is the comma-separated list of channel external IDs the
	// pipeline ingests. Supplied by the external configuration
	// collaborator; the core only enumerates it.
	Channels []string `envconfig:"CHANNEL_IDS"`

	// RetentionDays bounds how far back items are fetched and how wide
	// the comment peer window is. Items older than this are ignored, not
	// errors.
	RetentionDays int `envconfig:"RETENTION_DAYS" default:"30"`

	Fetch struct {
		MaxAttempts     int           `envconfig:"FETCH_MAX_ATTEMPTS" default:"4"`
		InitialBackoff  time.Duration `envconfig:"FETCH_INITIAL_BACKOFF" default:"1s"`
		MaxBackoff      time.Duration `envconfig:"FETCH_MAX_BACKOFF" default:"30s"`
		StaleRunTimeout time.Duration `envconfig:"STALE_RUN_TIMEOUT" default:"2h"`
	} `envconfig:""`

	Annotate struct {
		BacklogBatch int `envconfig:"ANNOTATE_BACKLOG_BATCH" default:"500"`
		BacklogMax   int `envconfig:"ANNOTATE_BACKLOG_MAX_BATCHES" default:"20"`
	} `envconfig:""`

	Queues struct {
		Ingest string `envconfig:"INGEST_QUEUE_KEY" default:"ingest_jobs"`
	} `envconfig:""`
}

// Load reads the config from the environment.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cleaned := cfg.Channels[:0]
	for _, id := range cfg.Channels {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	cfg.Channels = cleaned
	return cfg
}
