package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/wire"
	"github.com/samber/lo"

	"just3sec/adapters/jsonfile"
	mem "just3sec/adapters/memory"
	redisAdapter "just3sec/adapters/redis"
	sqlxAdapter "just3sec/adapters/sqlx"
	"just3sec/analytics"
	"just3sec/api/httpapi"
	"just3sec/config"
	"just3sec/core"
	"just3sec/engine"
	"just3sec/game"
	"just3sec/integrations/kafka"
	"just3sec/integrations/webhook"
	"just3sec/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Metrics *analytics.AttemptMetrics
	Service *engine.Service
	Handler http.Handler
	Server  *http.Server
}

// ConfigPath names a .json or .toml config file. Empty means defaults,
// profile and environment only.
type ConfigPath string

// Sinks are the optional outbound integrations; nil fields are disabled.
type Sinks struct {
	Webhook *webhook.Sink
	Kafka   *kafka.Producer
}

var providerSet = wire.NewSet(
	provideConfig,
	provideLogger,
	provideHub,
	provideStorage,
	provideMetrics,
	provideSinks,
	provideService,
	provideHandler,
	provideServer,
)

func provideConfig(ctx context.Context, path ConfigPath) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(string(path))
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.LoadSecretsFromEnv(ctx); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideMetrics() *analytics.AttemptMetrics {
	return analytics.NewAttemptMetrics()
}

func provideStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.Storage, func(), error) {
	noop := func() {}
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), noop, nil
	case "file":
		s, err := jsonfile.New(cfg.Storage.File.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("file storage: %w", err)
		}
		return s, noop, nil
	case "redis":
		s, err := redisAdapter.New(cfg.Storage.Redis)
		if err != nil {
			return nil, nil, err
		}
		return s, closer(logger, "redis", s), nil
	case "sql":
		s, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, nil, err
		}
		return s, closer(logger, "sql", s), nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}

func closer(logger *slog.Logger, name string, c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Warn("close failed", "component", name, "error", err)
		}
	}
}

func provideSinks(cfg *config.Config, logger *slog.Logger) (*Sinks, func(), error) {
	sinks := &Sinks{}
	hooks := cfg.Integrations.Webhooks
	if len(hooks.Endpoints) > 0 {
		types := lo.Map(hooks.Events, func(name string, _ int) core.EventType { return core.EventType(name) })
		sinks.Webhook = webhook.New(hooks.Endpoints,
			webhook.WithClient(&http.Client{Timeout: hooks.Timeout}),
			webhook.WithTypes(types...),
			webhook.WithLogger(logger),
		)
	}
	if cfg.Integrations.Kafka.Enabled {
		p, err := kafka.NewProducer(kafka.Config{
			Brokers: cfg.Integrations.Kafka.Brokers,
			Topic:   cfg.Integrations.Kafka.Topic,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		sinks.Kafka = p
		return sinks, closer(logger, "kafka", p), nil
	}
	return sinks, func() {}, nil
}

func provideService(cfg *config.Config, hub *realtime.Hub, storage engine.Storage, metrics *analytics.AttemptMetrics, sinks *Sinks, logger *slog.Logger) (*engine.Service, func()) {
	opts := []game.Option{
		game.WithRealtime(hub),
		game.WithStorage(storage),
		game.WithDispatchMode(cfg.Game.Dispatch()),
		game.WithSessionOptions(
			engine.WithCapacity(cfg.Game.HistoryCapacity),
			engine.WithChartWindow(cfg.Game.ChartWindow),
			engine.WithLogger(logger),
		),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, game.WithSubscriber("", analytics.NewBridge(metrics, analytics.NewDAU()).Handle))
	}
	if sinks.Webhook != nil {
		opts = append(opts, game.WithSubscriber("", sinks.Webhook.OnEvent))
	}
	if sinks.Kafka != nil {
		opts = append(opts, game.WithSubscriber("", sinks.Kafka.OnEvent))
	}
	svc := game.New(opts...)
	stopJanitor := svc.Janitor(cfg.Game.SessionIdle/2, cfg.Game.SessionIdle)
	return svc, func() {
		stopJanitor()
		svc.Close()
	}
}

func provideHandler(svc *engine.Service, hub *realtime.Hub, metrics *analytics.AttemptMetrics, cfg *config.Config, logger *slog.Logger) http.Handler {
	var reporter httpapi.MetricsReporter
	if cfg.Metrics.Enabled {
		reporter = metrics
	}
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		Metrics:          reporter,
		MetricsPath:      cfg.Metrics.Path,
		MetricsTop:       cfg.Metrics.TopUnlocks,
		Logger:           logger,
	})
}

func provideServer(cfg *config.Config, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(lo.MapToSlice(cfg.Logging.Attributes, func(k, v string) slog.Attr {
			return slog.String(k, v)
		}))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
