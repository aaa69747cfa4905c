package game

import (
	"context"

	mem "just3sec/adapters/memory"
	"just3sec/core"
	"just3sec/engine"
	"just3sec/realtime"
)

// Option configures the game builder.
type Option func(*config)

type config struct {
	storage     engine.Storage
	mode        engine.DispatchMode
	rules       engine.RuleEngine
	hub         *realtime.Hub
	sessionOpts []engine.SessionOption
	handlers    []handler
}

type handler struct {
	typ core.EventType
	fn  func(context.Context, core.Event)
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithRuleEngine sets the achievement rules.
func WithRuleEngine(r engine.RuleEngine) Option { return func(c *config) { c.rules = r } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime forwards every event to the hub.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithSessionOptions applies opts to every session the game creates.
func WithSessionOptions(opts ...engine.SessionOption) Option {
	return func(c *config) { c.sessionOpts = append(c.sessionOpts, opts...) }
}

// WithSubscriber registers fn for typ before any event is published. An
// empty typ receives every event.
func WithSubscriber(typ core.EventType, fn func(context.Context, core.Event)) Option {
	return func(c *config) { c.handlers = append(c.handlers, handler{typ: typ, fn: fn}) }
}

func build(opts []Option) (*config, *engine.EventBus) {
	cfg := &config{mode: engine.DispatchSync, rules: engine.DefaultRuleEngine()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = mem.New()
	}
	bus := engine.NewEventBus(cfg.mode)
	if cfg.hub != nil {
		bus.Subscribe("", cfg.hub.Broadcast)
	}
	for _, h := range cfg.handlers {
		bus.Subscribe(h.typ, h.fn)
	}
	return cfg, bus
}

// New builds a multi-player Service. If not provided, defaults are used:
//   - storage: in-memory
//   - rules: DefaultRuleEngine
//   - dispatch: sync
func New(opts ...Option) *engine.Service {
	cfg, bus := build(opts)
	return engine.NewService(cfg.storage, bus, cfg.rules, cfg.sessionOpts...)
}

// NewSession builds a single-player session and activates user on it.
// An id that does not normalize plays anonymously, without persistence.
func NewSession(ctx context.Context, user core.UserID, opts ...Option) *engine.Session {
	if u, err := core.NormalizeUserID(user); err == nil {
		user = u
	} else {
		user = core.Anonymous
	}
	cfg, bus := build(opts)
	sessOpts := append([]engine.SessionOption{
		engine.WithEventBus(bus),
		engine.WithRules(cfg.rules),
	}, cfg.sessionOpts...)
	s := engine.NewSession(cfg.storage, sessOpts...)
	s.Activate(ctx, user)
	return s
}
