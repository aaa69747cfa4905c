package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"

	"just3sec/adapters/sqlx"
	"just3sec/core"
)

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}

func oneOf(field, value string, allowed []string) string {
	if lo.Contains(allowed, value) {
		return ""
	}
	return fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", "))
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}
	timeouts := map[string]int64{
		"read_timeout":        int64(s.ReadTimeout),
		"write_timeout":       int64(s.WriteTimeout),
		"idle_timeout":        int64(s.IdleTimeout),
		"read_header_timeout": int64(s.ReadHeaderTimeout),
		"shutdown_timeout":    int64(s.ShutdownTimeout),
	}
	for _, name := range []string{"read_timeout", "write_timeout", "idle_timeout", "read_header_timeout", "shutdown_timeout"} {
		if timeouts[name] <= 0 {
			errs = append(errs, name+" must be positive")
		}
	}
	return joinErrs(errs)
}

// Validate checks the window sizes and the dispatch mode.
func (g *GameConfig) Validate() error {
	var errs []string
	if g.HistoryCapacity <= 0 {
		errs = append(errs, "history_capacity must be positive")
	}
	if g.ChartWindow <= 0 || g.ChartWindow > g.HistoryCapacity {
		errs = append(errs, "chart_window must be between 1 and history_capacity")
	}
	if msg := oneOf("dispatch_mode", strings.ToLower(g.DispatchMode), []string{"sync", "async"}); msg != "" {
		errs = append(errs, msg)
	}
	if g.SessionIdle < 0 {
		errs = append(errs, "session_idle must not be negative")
	}
	return joinErrs(errs)
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	if msg := oneOf("adapter", s.Adapter, []string{"memory", "redis", "sql", "file"}); msg != "" {
		errs = append(errs, msg)
	}

	switch s.Adapter {
	case "file":
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, "redis config: addr cannot be empty")
		}
	case "sql":
		drivers := []string{string(sqlx.DriverPostgres), string(sqlx.DriverMySQL), string(sqlx.DriverSQLite)}
		if msg := oneOf("sql config: driver", string(s.SQL.Driver), drivers); msg != "" {
			errs = append(errs, msg)
		}
		if s.SQL.DSN == "" {
			errs = append(errs, "sql config: dsn cannot be empty")
		}
	}
	return joinErrs(errs)
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	errs := lo.Compact([]string{
		oneOf("level", l.Level, []string{"debug", "info", "warn", "error"}),
		oneOf("format", l.Format, []string{"json", "text"}),
		oneOf("output", l.Output, []string{"stdout", "stderr"}),
	})
	return joinErrs(errs)
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	var errs []string
	if !strings.HasPrefix(m.Path, "/") {
		errs = append(errs, "path must start with / when metrics are enabled")
	}
	if m.TopUnlocks < 0 {
		errs = append(errs, "top_unlocks cannot be negative")
	}
	return joinErrs(errs)
}

// Validate validates security settings.
func (s SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	return joinErrs(errs)
}

// Validate checks endpoint URLs, event names and kafka settings.
func (i *IntegrationsConfig) Validate() error {
	var errs []string
	for n, raw := range i.Webhooks.Endpoints {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("webhooks.endpoints[%d] must be an http(s) URL", n))
		}
	}
	known := lo.Map(core.EventTypes(), func(t core.EventType, _ int) string { return string(t) })
	for _, name := range i.Webhooks.Events {
		if !lo.Contains(known, name) {
			errs = append(errs, fmt.Sprintf("webhooks.events: unknown event %q", name))
		}
	}
	if len(i.Webhooks.Endpoints) > 0 && i.Webhooks.Timeout <= 0 {
		errs = append(errs, "webhooks.timeout must be positive")
	}
	if i.Kafka.Enabled {
		if len(i.Kafka.Brokers) == 0 {
			errs = append(errs, "kafka.brokers cannot be empty when kafka is enabled")
		}
		if i.Kafka.Topic == "" {
			errs = append(errs, "kafka.topic cannot be empty when kafka is enabled")
		}
	}
	return joinErrs(errs)
}
