package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration shared by the server and
// worker processes. Only user-facing settings are exposed in vidsmith.toml;
// technical parameters carry hardcoded defaults for production stability.
type Config struct {
	Environment  string             `toml:"environment"` // "development" or "production"
	Server       ServerConfig       `toml:"server"`
	Database     DatabaseConfig     `toml:"database"`
	Broker       BrokerConfig       `toml:"broker"`
	Worker       WorkerConfig       `toml:"worker"`
	Scheduler    SchedulerConfig    `toml:"scheduler"`
	Auth         AuthConfig         `toml:"auth"`
	Logging      LoggingConfig      `toml:"logging"`
	TTS          TTSConfig          `toml:"tts"`
	Image        ImageConfig        `toml:"image"`
	Storage      StorageConfig      `toml:"storage"`
	DigitalHuman DigitalHumanConfig `toml:"digital_human"`
	LLM          LLMConfig          `toml:"llm"`
}

type ServerConfig struct {
	Port           int      `toml:"port"`
	Host           string   `toml:"host"`
	AllowedOrigins []string `toml:"allowed_origins" validate:"required,min=1"` // CORS allow-list, no "*" in production
}

// DatabaseConfig holds the SQLite settings for the durable store.
type DatabaseConfig struct {
	Path          string `toml:"path" validate:"required"` // Database file path (DSN)
	WALMode       bool   `toml:"wal_mode"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
	CacheSizeMB   int    `toml:"cache_size_mb"`
}

// BrokerConfig holds the badger-backed queue settings.
type BrokerConfig struct {
	Path              string `toml:"path"`               // Badger directory for queue state
	PollInterval      string `toml:"poll_interval"`      // e.g. "1s" - how often workers poll for messages
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g. "5m" - message visibility timeout for redelivery
	MaxRetries        int    `toml:"max_retries"`        // Retries before a message is dead-lettered
	BackoffCap        string `toml:"backoff_cap"`        // Upper bound for retry backoff, e.g. "10m"
	Jitter            bool   `toml:"jitter"`             // Randomize retry backoff
}

// WorkerConfig holds data-plane process settings.
type WorkerConfig struct {
	Concurrency   int    `toml:"concurrency"`     // Bounded pool size for job execution
	SoftTimeout   string `toml:"soft_timeout"`    // Executor aborts between steps past this, e.g. "55m"
	HardTimeout   string `toml:"hard_timeout"`    // Task slot is terminated past this, e.g. "60m"
	WorkspaceBase string `toml:"workspace_base"`  // Root directory for per-execution workspaces
	WorkspaceTTL  string `toml:"workspace_ttl"`   // Retention for failed-run workspaces
	VideoPoolSize int    `toml:"video_pool_size"` // Local encode pool cap; 0 = number of CPUs
	ProbePort     int    `toml:"probe_port"`      // Liveness/readiness listener for the worker process
}

// SchedulerConfig holds janitor timing knobs.
type SchedulerConfig struct {
	ResetStuckInterval string `toml:"reset_stuck_interval"` // Cron period for stuck-execution sweep
	StuckThreshold     string `toml:"stuck_threshold"`      // RUNNING executions older than this are timed out
	CleanupInterval    string `toml:"cleanup_interval"`     // Cron period for old-execution sweep
	Retention          string `toml:"retention"`            // Executions older than this are soft-deleted
	HealthInterval     string `toml:"health_interval"`      // Cron period for per-status counters
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret" validate:"required,min=32"`
	TokenTTL  string `toml:"token_ttl"` // e.g. "168h" (7 days)
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// TTSConfig configures the speech synthesizer client.
type TTSConfig struct {
	BaseURL string `toml:"base_url" validate:"required"`
	Timeout string `toml:"timeout"` // Per-call deadline, default "30m"
}

// ImageConfig configures the image generation client.
type ImageConfig struct {
	BaseURL   string `toml:"base_url" validate:"required"`
	Timeout   string `toml:"timeout"`
	RateLimit string `toml:"rate_limit"` // Minimum time between requests, e.g. "500ms"
}

// StorageConfig configures the object store client.
type StorageConfig struct {
	BaseURL   string `toml:"base_url" validate:"required"`
	Bucket    string `toml:"bucket"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Timeout   string `toml:"timeout"`
}

// DigitalHumanConfig configures the lip-sync service client.
type DigitalHumanConfig struct {
	BaseURL string `toml:"base_url"` // Empty disables the feature globally
	Timeout string `toml:"timeout"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderClaude uses the Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
	// LLMProviderHTTP uses a generic OpenAI-style chat endpoint
	LLMProviderHTTP LLMProvider = "http"
)

// LLMConfig configures the prompt-completion client used for image descriptions.
type LLMConfig struct {
	Provider  LLMProvider `toml:"provider"`   // "claude" or "http"
	APIKey    string      `toml:"api_key"`    // Anthropic API key when provider = "claude"
	BaseURL   string      `toml:"base_url"`   // Chat endpoint when provider = "http"
	Model     string      `toml:"model"`      // Default model name
	Timeout   string      `toml:"timeout"`    // Per-call deadline
	CacheTTL  string      `toml:"cache_ttl"`  // Response cache TTL, minimum "24h"
	CachePath string      `toml:"cache_path"` // Badger directory for the response cache
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:           8080,
			Host:           "localhost",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Path:          "./data/vidsmith.db",
			WALMode:       true,
			BusyTimeoutMS: 5000,
			CacheSizeMB:   64,
		},
		Broker: BrokerConfig{
			Path:              "./data/broker",
			PollInterval:      "1s",
			VisibilityTimeout: "5m",
			MaxRetries:        3,
			BackoffCap:        "10m",
			Jitter:            true,
		},
		Worker: WorkerConfig{
			Concurrency:   4,
			SoftTimeout:   "55m",
			HardTimeout:   "60m",
			WorkspaceBase: "./data/workspaces",
			WorkspaceTTL:  "72h",
			VideoPoolSize: 0,
			ProbePort:     8081,
		},
		Scheduler: SchedulerConfig{
			ResetStuckInterval: "@every 3m",
			StuckThreshold:     "20m",
			CleanupInterval:    "@every 24h",
			Retention:          "720h", // 30 days
			HealthInterval:     "@every 1h",
		},
		Auth: AuthConfig{
			TokenTTL: "168h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		TTS: TTSConfig{
			BaseURL: "http://localhost:9100",
			Timeout: "30m",
		},
		Image: ImageConfig{
			BaseURL:   "http://localhost:9200",
			Timeout:   "10m",
			RateLimit: "500ms",
		},
		Storage: StorageConfig{
			BaseURL: "http://localhost:9300",
			Bucket:  "vidsmith",
			Timeout: "10m",
		},
		DigitalHuman: DigitalHumanConfig{
			BaseURL: "",
			Timeout: "30m",
		},
		LLM: LLMConfig{
			Provider:  LLMProviderClaude,
			Model:     "claude-haiku-3-5-20241022",
			Timeout:   "5m",
			CacheTTL:  "24h",
			CachePath: "./data/llm-cache",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// Validate checks required settings and the production CORS policy.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Environment == "production" {
		for _, origin := range c.Server.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("invalid configuration: wildcard CORS origin not allowed in production")
			}
		}
	}

	if ttl, err := c.LLMCacheTTL(); err != nil {
		return fmt.Errorf("invalid llm.cache_ttl: %w", err)
	} else if ttl < 24*time.Hour {
		return fmt.Errorf("invalid llm.cache_ttl: must be at least 24h")
	}

	return nil
}

// Duration helpers. Config stores durations as strings so the TOML surface
// stays readable; parse failures fall back to the documented defaults.

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// PollIntervalDuration returns the worker poll cadence.
func (b *BrokerConfig) PollIntervalDuration() time.Duration {
	return parseDurationOr(b.PollInterval, time.Second)
}

// VisibilityTimeoutDuration returns how long a reserved message stays hidden.
func (b *BrokerConfig) VisibilityTimeoutDuration() time.Duration {
	return parseDurationOr(b.VisibilityTimeout, 5*time.Minute)
}

// BackoffCapDuration returns the retry backoff upper bound.
func (b *BrokerConfig) BackoffCapDuration() time.Duration {
	return parseDurationOr(b.BackoffCap, 10*time.Minute)
}

func (c *Config) BrokerPollInterval() time.Duration { return c.Broker.PollIntervalDuration() }
func (c *Config) BrokerVisibility() time.Duration   { return c.Broker.VisibilityTimeoutDuration() }
func (c *Config) BrokerBackoffCap() time.Duration   { return c.Broker.BackoffCapDuration() }
func (c *Config) WorkerSoftTimeout() time.Duration {
	return parseDurationOr(c.Worker.SoftTimeout, 55*time.Minute)
}
func (c *Config) WorkerHardTimeout() time.Duration {
	return parseDurationOr(c.Worker.HardTimeout, 60*time.Minute)
}
func (c *Config) WorkspaceTTL() time.Duration {
	return parseDurationOr(c.Worker.WorkspaceTTL, 72*time.Hour)
}
func (c *Config) StuckThreshold() time.Duration {
	return parseDurationOr(c.Scheduler.StuckThreshold, 20*time.Minute)
}
func (c *Config) ExecutionRetention() time.Duration {
	return parseDurationOr(c.Scheduler.Retention, 720*time.Hour)
}
func (c *Config) TokenTTL() time.Duration   { return parseDurationOr(c.Auth.TokenTTL, 168*time.Hour) }
func (c *Config) TTSTimeout() time.Duration { return parseDurationOr(c.TTS.Timeout, 30*time.Minute) }
func (c *Config) ImageTimeout() time.Duration {
	return parseDurationOr(c.Image.Timeout, 10*time.Minute)
}
func (c *Config) ImageRateLimit() time.Duration {
	return parseDurationOr(c.Image.RateLimit, 500*time.Millisecond)
}
func (c *Config) StorageTimeout() time.Duration {
	return parseDurationOr(c.Storage.Timeout, 10*time.Minute)
}
func (c *Config) DigitalHumanTimeout() time.Duration {
	return parseDurationOr(c.DigitalHuman.Timeout, 30*time.Minute)
}
func (c *Config) LLMTimeout() time.Duration { return parseDurationOr(c.LLM.Timeout, 5*time.Minute) }

// LLMCacheTTL returns the configured cache TTL, erroring on malformed values
// because the 24h floor is a contract, not a tuning knob.
func (c *Config) LLMCacheTTL() (time.Duration, error) {
	if c.LLM.CacheTTL == "" {
		return 24 * time.Hour, nil
	}
	return time.ParseDuration(c.LLM.CacheTTL)
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VIDSMITH_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("VIDSMITH_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("VIDSMITH_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if origins := os.Getenv("VIDSMITH_ALLOWED_ORIGINS"); origins != "" {
		parts := []string{}
		for _, o := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			config.Server.AllowedOrigins = parts
		}
	}

	if dsn := os.Getenv("VIDSMITH_DATABASE_PATH"); dsn != "" {
		config.Database.Path = dsn
	}
	if path := os.Getenv("VIDSMITH_BROKER_PATH"); path != "" {
		config.Broker.Path = path
	}
	if poll := os.Getenv("VIDSMITH_BROKER_POLL_INTERVAL"); poll != "" {
		config.Broker.PollInterval = poll
	}
	if vt := os.Getenv("VIDSMITH_BROKER_VISIBILITY_TIMEOUT"); vt != "" {
		config.Broker.VisibilityTimeout = vt
	}
	if mr := os.Getenv("VIDSMITH_BROKER_MAX_RETRIES"); mr != "" {
		if n, err := strconv.Atoi(mr); err == nil {
			config.Broker.MaxRetries = n
		}
	}

	if concurrency := os.Getenv("VIDSMITH_WORKER_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Worker.Concurrency = c
		}
	}
	if base := os.Getenv("VIDSMITH_WORKSPACE_BASE"); base != "" {
		config.Worker.WorkspaceBase = base
	}

	if secret := os.Getenv("VIDSMITH_JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}

	if level := os.Getenv("VIDSMITH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("VIDSMITH_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if url := os.Getenv("VIDSMITH_TTS_BASE_URL"); url != "" {
		config.TTS.BaseURL = url
	}
	if url := os.Getenv("VIDSMITH_IMAGE_BASE_URL"); url != "" {
		config.Image.BaseURL = url
	}
	if url := os.Getenv("VIDSMITH_STORAGE_BASE_URL"); url != "" {
		config.Storage.BaseURL = url
	}
	if key := os.Getenv("VIDSMITH_STORAGE_ACCESS_KEY"); key != "" {
		config.Storage.AccessKey = key
	}
	if key := os.Getenv("VIDSMITH_STORAGE_SECRET_KEY"); key != "" {
		config.Storage.SecretKey = key
	}
	if url := os.Getenv("VIDSMITH_DIGITAL_HUMAN_BASE_URL"); url != "" {
		config.DigitalHuman.BaseURL = url
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && config.LLM.APIKey == "" {
		config.LLM.APIKey = key
	}
}
