package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"just3sec/adapters/sqlx"
	"just3sec/engine"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 50, cfg.Game.HistoryCapacity)
	assert.Equal(t, 20, cfg.Game.ChartWindow)
	assert.Equal(t, engine.DispatchSync, cfg.Game.Dispatch())
	assert.Equal(t, 30*time.Minute, cfg.Game.SessionIdle)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JUST3SEC_GAME_CHART_WINDOW", "10")
	t.Setenv("JUST3SEC_GAME_DISPATCH_MODE", "ASYNC")
	t.Setenv("JUST3SEC_SERVER_READ_TIMEOUT", "3s")
	t.Setenv("JUST3SEC_SECURITY_API_KEYS", "a, b,,c")
	t.Setenv("JUST3SEC_LOG_ATTRIBUTES", "service=just3sec, region=eu")
	t.Setenv("JUST3SEC_SQL_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Game.ChartWindow)
	assert.Equal(t, engine.DispatchAsync, cfg.Game.Dispatch())
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Security.APIKeys)
	assert.Equal(t, map[string]string{"service": "just3sec", "region": "eu"}, cfg.Logging.Attributes)
	assert.Equal(t, sqlx.DriverSQLite, cfg.Storage.SQL.Driver)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("JUST3SEC_GAME_HISTORY_CAPACITY", "many")
	_, err := Load()
	assert.ErrorContains(t, err, "JUST3SEC_GAME_HISTORY_CAPACITY")
}

func TestLoadUsesProfileFromEnv(t *testing.T) {
	t.Setenv("JUST3SEC_PROFILE", "testing")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeTemp(t, "config.json", `{
		"environment": "testing",
		"server": {
			"address": ":9090"
		},
		"storage": {
			"adapter": "memory"
		},
		"game": {
			"history_capacity": 30,
			"chart_window": 15
		}
	}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, 30, cfg.Game.HistoryCapacity)
	assert.Equal(t, 15, cfg.Game.ChartWindow)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout, "unset fields keep defaults")
}

func TestLoadFromTOMLFile(t *testing.T) {
	path := writeTemp(t, "config.toml", `
environment = "staging"

[server]
address = ":7070"
read_timeout = "2s"

[game]
dispatch_mode = "async"

[storage]
adapter = "sql"

[storage.sql]
driver = "sqlite"
dsn = "file:test.db"

[integrations.webhooks]
endpoints = ["https://hooks.example.com/just3sec"]
events = ["achievement_unlocked"]
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, engine.DispatchAsync, cfg.Game.Dispatch())
	assert.Equal(t, sqlx.DriverSQLite, cfg.Storage.SQL.Driver)
	assert.Equal(t, "file:test.db", cfg.Storage.SQL.DSN)
	assert.Equal(t, []string{"achievement_unlocked"}, cfg.Integrations.Webhooks.Events)
}

func TestLoadFromFileInvalid(t *testing.T) {
	path := writeTemp(t, "config.toml", `
[game]
history_capacity = 5
chart_window = 20
`)
	_, err := LoadFromFile(path)
	assert.ErrorContains(t, err, "chart_window")

	path = writeTemp(t, "broken.json", `{"server":`)
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "failed to parse")
}

func validConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Address:           ":8080",
			ReadTimeout:       time.Second,
			WriteTimeout:      time.Second,
			IdleTimeout:       time.Second,
			ReadHeaderTimeout: time.Second,
			ShutdownTimeout:   time.Second,
		},
		Game: GameConfig{HistoryCapacity: 50, ChartWindow: 20, DispatchMode: "sync"},
		Storage: StorageConfig{
			Adapter: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "invalid environment", mutate: func(c *Config) { c.Environment = "" }, expectError: "environment"},
		{name: "invalid server timeout", mutate: func(c *Config) { c.Server.ReadTimeout = 0 }, expectError: "read_timeout"},
		{name: "zero capacity", mutate: func(c *Config) { c.Game.HistoryCapacity = 0 }, expectError: "history_capacity"},
		{name: "chart wider than history", mutate: func(c *Config) { c.Game.ChartWindow = 51 }, expectError: "chart_window"},
		{name: "unknown dispatch", mutate: func(c *Config) { c.Game.DispatchMode = "parallel" }, expectError: "dispatch_mode"},
		{name: "negative session idle", mutate: func(c *Config) { c.Game.SessionIdle = -time.Second }, expectError: "session_idle"},
		{name: "unknown adapter", mutate: func(c *Config) { c.Storage.Adapter = "mongo" }, expectError: "adapter"},
		{name: "sql without dsn", mutate: func(c *Config) {
			c.Storage.Adapter = "sql"
			c.Storage.SQL = sqlx.Config{Driver: sqlx.DriverPostgres}
		}, expectError: "dsn"},
		{name: "sql bad driver", mutate: func(c *Config) {
			c.Storage.Adapter = "sql"
			c.Storage.SQL = sqlx.Config{Driver: "oracle", DSN: "x"}
		}, expectError: "driver"},
		{name: "file without path", mutate: func(c *Config) { c.Storage.Adapter = "file" }, expectError: "path"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, expectError: "level"},
		{name: "rate limit without rpm", mutate: func(c *Config) { c.Security.EnableRateLimit = true }, expectError: "requests_per_minute"},
		{name: "blank api key", mutate: func(c *Config) { c.Security.APIKeys = []string{" "} }, expectError: "api_keys[0]"},
		{name: "bad webhook url", mutate: func(c *Config) {
			c.Integrations.Webhooks.Endpoints = []string{"ftp://x"}
			c.Integrations.Webhooks.Timeout = time.Second
		}, expectError: "endpoints[0]"},
		{name: "unknown webhook event", mutate: func(c *Config) { c.Integrations.Webhooks.Events = []string{"level_up"} }, expectError: "level_up"},
		{name: "kafka without brokers", mutate: func(c *Config) {
			c.Integrations.Kafka = KafkaConfig{Enabled: true, Topic: "t"}
		}, expectError: "brokers"},
		{name: "metrics without path", mutate: func(c *Config) { c.Metrics = MetricsConfig{Enabled: true} }, expectError: "path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError != "" {
				assert.ErrorContains(t, err, tt.expectError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStringRedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.SQL.DSN = "postgres://user:pw@db/just3sec"
	cfg.Storage.Redis.Password = "hunter2"
	cfg.Security.APIKeys = []string{"k1"}

	out := cfg.String()
	assert.NotContains(t, out, "pw@db")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "k1")
	assert.Contains(t, out, redacted)
	assert.Equal(t, []string{"k1"}, cfg.Security.APIKeys, "original is untouched")
}

func TestProfiles(t *testing.T) {
	tests := []struct {
		name         string
		profileName  string
		expectConfig bool
		environment  Environment
		adapter      string
	}{
		{"development", "development", true, EnvDevelopment, "memory"},
		{"testing", "testing", true, EnvTesting, "memory"},
		{"staging", "staging", true, EnvStaging, "redis"},
		{"production", "production", true, EnvProduction, "sql"},
		{"unknown", "unknown", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadProfile(tt.profileName)
			if tt.expectConfig {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				assert.Equal(t, tt.environment, cfg.Environment)
				assert.Equal(t, tt.adapter, cfg.Storage.Adapter)
				assert.Equal(t, tt.profileName, cfg.Profile)
			} else {
				assert.Error(t, err)
				assert.Nil(t, cfg)
			}
		})
	}
}

func TestSecrets(t *testing.T) {
	store := NewEnvironmentSecretStore()

	testKey := "TEST_SECRET_KEY"
	testValue := "test_secret_value"
	t.Setenv(testKey, testValue)

	ctx := context.Background()

	value, err := store.Get(ctx, testKey)
	assert.NoError(t, err)
	assert.Equal(t, testValue, value)

	_, err = store.Get(ctx, "NONEXISTENT_KEY")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	defaultValue := "default"
	value = store.GetWithDefault(ctx, "NONEXISTENT_KEY", defaultValue)
	assert.Equal(t, defaultValue, value)

	value = store.GetWithDefault(ctx, testKey, defaultValue)
	assert.Equal(t, testValue, value)
}

func TestSecretsFromFile(t *testing.T) {
	path := writeTemp(t, "dsn", "postgres://secret@db/just3sec\n")
	t.Setenv("JUST3SEC_SQL_DSN_FILE", path)
	t.Setenv("JUST3SEC_SECURITY_API_KEYS", "k1,k2")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadSecretsFromEnv(context.Background()))
	assert.Equal(t, "postgres://secret@db/just3sec", cfg.Storage.SQL.DSN)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.APIKeys)
	assert.Empty(t, cfg.Storage.Redis.Password)

	t.Setenv("JUST3SEC_REDIS_PASSWORD_FILE", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, cfg.LoadSecretsFromEnv(context.Background()))
}

func TestValidateConfigPath(t *testing.T) {
	dir := t.TempDir()
	create := func(name string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
		return path
	}

	tests := []struct {
		name        string
		path        string
		expectError bool
		format      fileFormat
	}{
		{"valid json file", create("a.json"), false, formatJSON},
		{"valid toml file", create("b.TOML"), false, formatTOML},
		{"empty path", "", true, 0},
		{"path traversal", "../../../etc/passwd", true, 0},
		{"unsupported extension", create("c.txt"), true, 0},
		{"nonexistent file", filepath.Join(dir, "nonexistent.json"), true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := validateConfigPath(tt.path)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.format, format)
			}
		})
	}
}
