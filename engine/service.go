package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"just3sec/core"
)

// Service keeps one Session per identity and exposes the game operations
// keyed by user. It backs the HTTP API.
type Service struct {
	storage   Storage
	bus       *EventBus
	rules     RuleEngine
	catalogue *core.Registry
	opts      []SessionOption

	now func() time.Time

	mu       sync.Mutex
	sessions map[core.UserID]*Session
	lastUsed map[core.UserID]time.Time
}

func NewService(storage Storage, bus *EventBus, rules RuleEngine, opts ...SessionOption) *Service {
	if storage == nil || bus == nil || rules == nil {
		panic("NewService requires non-nil storage, bus, and rules")
	}
	catalogue, ok := rules.(*core.Registry)
	if !ok {
		catalogue = core.DefaultRegistry()
	}
	return &Service{
		storage:   storage,
		bus:       bus,
		rules:     rules,
		catalogue: catalogue,
		opts:      opts,
		now:       time.Now,
		sessions:  map[core.UserID]*Session{},
		lastUsed:  map[core.UserID]time.Time{},
	}
}

// DefaultRuleEngine is the game's achievement catalogue.
func DefaultRuleEngine() RuleEngine { return core.DefaultRegistry() }

// Subscribe convenience method.
func (g *Service) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return g.bus.Subscribe(typ, handler)
}

func (g *Service) Publish(ctx context.Context, ev core.Event) {
	g.bus.Publish(ctx, ev)
}

// Session returns the session of user, loading its record on first use.
func (g *Service) Session(ctx context.Context, user core.UserID) (*Session, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, ErrAnonymous
	}
	g.mu.Lock()
	g.lastUsed[normalized] = g.now()
	if s, ok := g.sessions[normalized]; ok {
		g.mu.Unlock()
		return s, nil
	}
	opts := append([]SessionOption{WithRules(g.rules), WithEventBus(g.bus)}, g.opts...)
	s := NewSession(g.storage, opts...)
	// hold the session lock until the record is loaded so concurrent callers
	// never observe the empty state
	s.mu.Lock()
	g.sessions[normalized] = s
	g.mu.Unlock()

	events := s.activateLocked(ctx, normalized)
	s.mu.Unlock()
	s.publish(ctx, events)
	return s, nil
}

// Start begins an attempt for user; false when one is already running.
func (g *Service) Start(ctx context.Context, user core.UserID) (bool, error) {
	s, err := g.Session(ctx, user)
	if err != nil {
		return false, err
	}
	return s.Start(), nil
}

// Stop ends the running attempt of user. recorded is false when idle.
func (g *Service) Stop(ctx context.Context, user core.UserID) (res AttemptResult, recorded bool, err error) {
	s, err := g.Session(ctx, user)
	if err != nil {
		return AttemptResult{}, false, err
	}
	res, recorded = s.Stop(ctx)
	return res, recorded, nil
}

// Record stores a client-timed attempt for user.
func (g *Service) Record(ctx context.Context, user core.UserID, errorMs int64) (AttemptResult, error) {
	s, err := g.Session(ctx, user)
	if err != nil {
		return AttemptResult{}, err
	}
	return s.Record(ctx, errorMs)
}

func (g *Service) Profile(ctx context.Context, user core.UserID) (Profile, error) {
	s, err := g.Session(ctx, user)
	if err != nil {
		return Profile{}, err
	}
	return s.Profile(), nil
}

// Chart returns the display window of user.
func (g *Service) Chart(ctx context.Context, user core.UserID) ([]int64, error) {
	s, err := g.Session(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.Chart(), nil
}

func (g *Service) Clear(ctx context.Context, user core.UserID, confirmed bool) error {
	s, err := g.Session(ctx, user)
	if err != nil {
		return err
	}
	return s.Clear(ctx, confirmed)
}

// Achievements lists the catalogue with the unlock state of user.
func (g *Service) Achievements(ctx context.Context, user core.UserID) ([]AchievementView, error) {
	s, err := g.Session(ctx, user)
	if err != nil {
		return nil, err
	}
	return ViewAchievements(g.catalogue, s.Unlocked(), false), nil
}

// Catalogue lists every achievement without unlock state.
func (g *Service) Catalogue(reveal bool) []AchievementView {
	return ViewAchievements(g.catalogue, nil, reveal)
}

// Healthy probes storage with a read of a reserved identity.
func (g *Service) Healthy(ctx context.Context) error {
	_, err := g.storage.Load(ctx, core.UserID("healthcheck_probe"))
	if err != nil && !errors.Is(err, core.ErrRecordNotFound) {
		return err
	}
	return nil
}

// Len is the number of sessions held in memory.
func (g *Service) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// EvictIdle drops sessions unused for longer than maxIdle and returns how
// many went. Sessions with a running attempt or unwritten state stay; the
// next request for an evicted user reloads it from storage.
func (g *Service) EvictIdle(maxIdle time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := g.now().Add(-maxIdle)
	n := 0
	for user, s := range g.sessions {
		if g.lastUsed[user].After(cutoff) || s.Running() || !s.writer.idle() {
			continue
		}
		delete(g.sessions, user)
		delete(g.lastUsed, user)
		n++
	}
	return n
}

// Janitor runs EvictIdle every interval until stop is called. A
// non-positive maxIdle keeps every session.
func (g *Service) Janitor(interval, maxIdle time.Duration) (stop func()) {
	if interval <= 0 || maxIdle <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				g.EvictIdle(maxIdle)
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

// Close waits for pending writes of every session and stops the bus.
func (g *Service) Close() {
	g.mu.Lock()
	sessions := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.Unlock()
	for _, s := range sessions {
		s.Wait()
	}
	g.bus.Close()
}

// AchievementView is an achievement as shown to a player.
type AchievementView struct {
	core.Achievement
	Unlocked bool `json:"unlocked"`
}

const hiddenText = "???"

// ViewAchievements renders reg in order. Secret achievements that are still
// locked have their name and description hidden unless reveal is set.
func ViewAchievements(reg *core.Registry, unlocked core.UnlockedSet, reveal bool) []AchievementView {
	all := reg.All()
	out := make([]AchievementView, 0, len(all))
	for _, a := range all {
		v := AchievementView{Achievement: a, Unlocked: unlocked.Has(a.ID)}
		if a.Secret && !v.Unlocked && !reveal {
			v.Name = hiddenText
			v.Description = hiddenText
		}
		out = append(out, v)
	}
	return out
}
