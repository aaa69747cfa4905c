package config

import (
	"fmt"
	"time"

	"just3sec/adapters/sqlx"
)

// LoadProfile returns the named preset with environment overrides applied.
// Known profiles are development, testing, staging and production.
func LoadProfile(name string) (*Config, error) {
	cfg, err := profile(name)
	if err != nil {
		return nil, err
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s profile: %w", name, err)
	}
	return cfg, nil
}

func profile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name

	switch Environment(name) {
	case EnvDevelopment:
		cfg.Environment = EnvDevelopment
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"

	case EnvTesting:
		cfg.Environment = EnvTesting
		cfg.Server.Address = "127.0.0.1:0"
		cfg.Logging.Level = "warn"
		cfg.Logging.Output = "stderr"
		cfg.Metrics.Enabled = false

	case EnvStaging:
		cfg.Environment = EnvStaging
		cfg.Game.DispatchMode = "async"
		cfg.Storage.Adapter = "redis"
		cfg.Security.EnableRateLimit = true

	case EnvProduction:
		cfg.Environment = EnvProduction
		cfg.Server.CORSOrigin = ""
		cfg.Server.ShutdownTimeout = 15 * time.Second
		cfg.Game.DispatchMode = "async"
		cfg.Storage.Adapter = "sql"
		cfg.Storage.SQL = sqlx.DefaultConfig(sqlx.DriverPostgres)
		cfg.Security.EnableRateLimit = true
		cfg.Security.RateLimit.RequestsPerMinute = 120
		cfg.Security.RateLimit.BurstSize = 20

	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	return cfg, nil
}
