package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"just3sec/adapters/redis"
	"just3sec/adapters/sqlx"
	"just3sec/engine"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	Environment Environment `json:"environment" toml:"environment" env:"JUST3SEC_ENV"`
	Profile     string      `json:"profile" toml:"profile" env:"JUST3SEC_PROFILE"`

	Server       ServerConfig       `json:"server" toml:"server"`
	Game         GameConfig         `json:"game" toml:"game"`
	Storage      StorageConfig      `json:"storage" toml:"storage"`
	Logging      LoggingConfig      `json:"logging" toml:"logging"`
	Metrics      MetricsConfig      `json:"metrics" toml:"metrics"`
	Security     SecurityConfig     `json:"security" toml:"security"`
	Integrations IntegrationsConfig `json:"integrations" toml:"integrations"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" toml:"address" env:"JUST3SEC_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" toml:"path_prefix" env:"JUST3SEC_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" toml:"cors_origin" env:"JUST3SEC_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" toml:"read_timeout" env:"JUST3SEC_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" toml:"write_timeout" env:"JUST3SEC_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" toml:"idle_timeout" env:"JUST3SEC_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" toml:"read_header_timeout" env:"JUST3SEC_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" toml:"shutdown_timeout" env:"JUST3SEC_SERVER_SHUTDOWN_TIMEOUT"`
}

// GameConfig tunes the attempt pipeline.
type GameConfig struct {
	// HistoryCapacity bounds the rolling window the rating is computed over.
	HistoryCapacity int `json:"history_capacity" toml:"history_capacity" env:"JUST3SEC_GAME_HISTORY_CAPACITY"`
	// ChartWindow is how many recent samples the chart shows.
	ChartWindow int `json:"chart_window" toml:"chart_window" env:"JUST3SEC_GAME_CHART_WINDOW"`
	// DispatchMode is "sync" or "async".
	DispatchMode string `json:"dispatch_mode" toml:"dispatch_mode" env:"JUST3SEC_GAME_DISPATCH_MODE"`
	// SessionIdle evicts server sessions unused this long; 0 keeps them all.
	SessionIdle time.Duration `json:"session_idle" toml:"session_idle" env:"JUST3SEC_GAME_SESSION_IDLE"`
}

// Dispatch maps DispatchMode onto the event bus mode.
func (g GameConfig) Dispatch() engine.DispatchMode {
	if strings.EqualFold(g.DispatchMode, "async") {
		return engine.DispatchAsync
	}
	return engine.DispatchSync
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" toml:"adapter" env:"JUST3SEC_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty" toml:"redis"`
	SQL     sqlx.Config  `json:"sql,omitempty" toml:"sql"`
	File    FileConfig   `json:"file,omitempty" toml:"file"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" toml:"path" env:"JUST3SEC_STORAGE_FILE_PATH"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" toml:"level" env:"JUST3SEC_LOG_LEVEL"`
	Format     string            `json:"format" toml:"format" env:"JUST3SEC_LOG_FORMAT"`
	Output     string            `json:"output" toml:"output" env:"JUST3SEC_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" toml:"attributes" env:"JUST3SEC_LOG_ATTRIBUTES"`
}

// MetricsConfig controls the in-process attempt analytics.
type MetricsConfig struct {
	Enabled bool `json:"enabled" toml:"enabled" env:"JUST3SEC_METRICS_ENABLED"`
	// Path is mounted under the server prefix.
	Path string `json:"path" toml:"path" env:"JUST3SEC_METRICS_PATH"`
	// TopUnlocks is the default number of achievements listed in the report.
	TopUnlocks int `json:"top_unlocks" toml:"top_unlocks" env:"JUST3SEC_METRICS_TOP_UNLOCKS"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" toml:"enable_rate_limit" env:"JUST3SEC_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" toml:"rate_limit"`
	APIKeys         []string        `json:"api_keys,omitempty" toml:"api_keys" env:"JUST3SEC_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" toml:"requests_per_minute" env:"JUST3SEC_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" toml:"burst_size" env:"JUST3SEC_SECURITY_RATE_LIMIT_BURST"`
}

// IntegrationsConfig lists the outbound event sinks.
type IntegrationsConfig struct {
	Webhooks WebhookConfig `json:"webhooks" toml:"webhooks"`
	Kafka    KafkaConfig   `json:"kafka" toml:"kafka"`
}

// WebhookConfig posts events to HTTP endpoints.
type WebhookConfig struct {
	Endpoints []string      `json:"endpoints,omitempty" toml:"endpoints" env:"JUST3SEC_WEBHOOK_ENDPOINTS"`
	Events    []string      `json:"events,omitempty" toml:"events" env:"JUST3SEC_WEBHOOK_EVENTS"`
	Timeout   time.Duration `json:"timeout" toml:"timeout" env:"JUST3SEC_WEBHOOK_TIMEOUT"`
}

// KafkaConfig publishes events to a Kafka topic.
type KafkaConfig struct {
	Enabled bool     `json:"enabled" toml:"enabled" env:"JUST3SEC_KAFKA_ENABLED"`
	Brokers []string `json:"brokers,omitempty" toml:"brokers" env:"JUST3SEC_KAFKA_BROKERS"`
	Topic   string   `json:"topic" toml:"topic" env:"JUST3SEC_KAFKA_TOPIC"`
}

// Load builds the configuration from defaults, the profile named by
// JUST3SEC_PROFILE (if any) and environment variables, then validates it.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if name := os.Getenv("JUST3SEC_PROFILE"); name != "" {
		p, err := profile(name)
		if err != nil {
			return nil, err
		}
		cfg = p
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type fileFormat int

const (
	formatJSON fileFormat = iota
	formatTOML
)

// validateConfigPath validates that the config file path is safe and
// reports its format.
func validateConfigPath(path string) (fileFormat, error) {
	if path == "" {
		return 0, errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	var format fileFormat
	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".json":
		format = formatJSON
	case ".toml":
		format = formatTOML
	default:
		return 0, errors.New("config file must have .json or .toml extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return 0, fmt.Errorf("config file not accessible: %w", err)
	}
	return format, nil
}

// LoadFromFile loads configuration from a JSON or TOML file. Environment
// variables override file values.
func LoadFromFile(path string) (*Config, error) {
	format, err := validateConfigPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	switch format {
	case formatTOML:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Game: GameConfig{
			HistoryCapacity: 50,
			ChartWindow:     20,
			DispatchMode:    "sync",
			SessionIdle:     30 * time.Minute,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Path: "./data/just3sec.json",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			Path:       "/metrics",
			TopUnlocks: 5,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
			},
			APIKeys: []string{},
		},
		Integrations: IntegrationsConfig{
			Webhooks: WebhookConfig{Timeout: 5 * time.Second},
			Kafka:    KafkaConfig{Topic: "just3sec-events"},
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	sections := []struct {
		name string
		err  error
	}{
		{"server", c.Server.Validate()},
		{"game", c.Game.Validate()},
		{"storage", c.Storage.Validate()},
		{"logging", c.Logging.Validate()},
		{"metrics", c.Metrics.Validate()},
		{"security", c.Security.Validate()},
		{"integrations", c.Integrations.Validate()},
	}
	for _, s := range sections {
		if s.err != nil {
			errs = append(errs, fmt.Sprintf("%s config: %v", s.name, s.err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = redacted
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = redacted
	}
	if len(cfg.Security.APIKeys) > 0 {
		keys := make([]string, len(cfg.Security.APIKeys))
		for i := range keys {
			keys[i] = redacted
		}
		cfg.Security.APIKeys = keys
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}

const redacted = "[REDACTED]"
