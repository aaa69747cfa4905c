package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"just3sec/core"
)

var (
	// ErrConfirmationRequired is returned by Clear when the caller did not
	// confirm the reset.
	ErrConfirmationRequired = errors.New("clearing history requires confirmation")
	// ErrNegativeError rejects attempts reported with a negative error.
	ErrNegativeError = errors.New("error_ms must not be negative")
	// ErrAnonymous rejects keyed operations without a user id.
	ErrAnonymous = errors.New("user id required")
)

// AttemptResult is what the presentation layer receives after each attempt.
type AttemptResult struct {
	UserID        core.UserID          `json:"user_id"`
	ErrorMs       int64                `json:"error_ms"`
	ScoreDelta    float64              `json:"score_delta"`
	Rating        float64              `json:"rating"`
	TotalGames    int64                `json:"total_games"`
	BestRecord    *int64               `json:"best_record,omitempty"`
	NewlyUnlocked []core.AchievementID `json:"newly_unlocked"`
}

// Profile is a read-only view of a session.
type Profile struct {
	UserID core.UserID `json:"user_id"`
	core.Stats
	Unlocked []core.AchievementID `json:"unlocked"`
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithCapacity sets the history window size.
func WithCapacity(n int) SessionOption { return func(s *Session) { s.capacity = n } }

// WithChartWindow sets how many recent samples Chart returns.
func WithChartWindow(n int) SessionOption { return func(s *Session) { s.chart = n } }

// WithClock replaces time.Now for the stopwatch.
func WithClock(now func() time.Time) SessionOption { return func(s *Session) { s.now = now } }

// WithLogger sets the logger used for persistence failures.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEventBus publishes session events on bus.
func WithEventBus(bus *EventBus) SessionOption { return func(s *Session) { s.bus = bus } }

// WithRules overrides the achievement rules.
func WithRules(r RuleEngine) SessionOption {
	return func(s *Session) {
		if r != nil {
			s.rules = r
		}
	}
}

// Session owns the game state of one identity: the history window, the
// unlocked achievements and the stopwatch. A nil Storage keeps everything
// in memory.
type Session struct {
	mu       sync.Mutex
	user     core.UserID
	history  *core.History
	unlocked core.UnlockedSet
	watch    *core.Stopwatch

	capacity int
	chart    int
	now      func() time.Time
	storage  Storage
	rules    RuleEngine
	bus      *EventBus
	logger   *slog.Logger
	writer   *writer
}

// NewSession returns an anonymous session. Call Activate or Bind to attach
// an identity.
func NewSession(storage Storage, opts ...SessionOption) *Session {
	s := &Session{
		capacity: core.DefaultCapacity,
		chart:    core.ChartWindow,
		storage:  storage,
		rules:    core.DefaultRegistry(),
		logger:   slog.Default(),
		unlocked: core.UnlockedSet{},
	}
	for _, o := range opts {
		o(s)
	}
	s.history = core.NewHistory(s.capacity)
	s.watch = core.NewStopwatch(s.now)
	s.writer = newWriter(s.onWriteFailed)
	return s
}

// User is the active identity; core.Anonymous when signed out.
func (s *Session) User() core.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Activate switches the session to user, replacing all in-memory state with
// the stored record. Missing records and load failures start from empty.
func (s *Session) Activate(ctx context.Context, user core.UserID) {
	s.mu.Lock()
	events := s.activateLocked(ctx, user)
	s.mu.Unlock()
	s.publish(ctx, events)
}

// activateLocked waits for queued writes before loading so a reload never
// reads a record older than this session's own saves. Write failure
// handlers must not call back into the session.
func (s *Session) activateLocked(ctx context.Context, user core.UserID) []core.Event {
	s.writer.wait()
	s.watch.Reset()
	s.user = user
	s.history.Clear()
	s.unlocked = core.UnlockedSet{}
	events := []core.Event{core.NewIdentityChanged(user)}
	if !s.persistent() {
		return events
	}
	rec, err := s.storage.Load(ctx, user)
	switch {
	case err == nil:
		s.history.Restore(rec.Snapshot)
		s.unlocked = rec.Unlocked.Clone()
	case errors.Is(err, core.ErrRecordNotFound):
	default:
		s.logger.Warn("load failed, starting from empty stats", "user", user, "error", err)
		events = append(events, core.NewPersistFailed(user, "load", err))
	}
	s.logger.Info("identity activated", "user", user, "total_games", s.history.Snapshot().TotalGames)
	return events
}

// Bind activates the provider's current identity and follows its changes
// until the returned function is called.
func (s *Session) Bind(ctx context.Context, p IdentityProvider) (unbind func()) {
	user, ok := p.Current()
	if !ok {
		user = core.Anonymous
	}
	s.Activate(ctx, user)
	return p.OnChange(func(u core.UserID, ok bool) {
		if !ok {
			u = core.Anonymous
		}
		s.Activate(ctx, u)
	})
}

// Start begins an attempt; false when one is already running.
func (s *Session) Start() bool { return s.watch.Start() }

func (s *Session) Running() bool { return s.watch.Running() }

// Elapsed is the running time of the current attempt.
func (s *Session) Elapsed() time.Duration { return s.watch.Elapsed() }

// Stop ends the running attempt and records it. ok is false when the
// stopwatch was idle. The attempt is recorded for the identity active
// when it stopped, even if an identity switch is waiting.
func (s *Session) Stop(ctx context.Context) (res AttemptResult, ok bool) {
	s.mu.Lock()
	errorMs, ok := s.watch.Stop()
	if !ok {
		s.mu.Unlock()
		return AttemptResult{}, false
	}
	res, events := s.recordLocked(errorMs)
	s.mu.Unlock()
	s.publish(ctx, events)
	return res, true
}

// Record appends an attempt measured elsewhere, recomputes the rating and
// evaluates achievements, in that order.
func (s *Session) Record(ctx context.Context, errorMs int64) (AttemptResult, error) {
	if errorMs < 0 {
		return AttemptResult{}, ErrNegativeError
	}
	s.mu.Lock()
	res, events := s.recordLocked(errorMs)
	s.mu.Unlock()
	s.publish(ctx, events)
	return res, nil
}

func (s *Session) recordLocked(errorMs int64) (AttemptResult, []core.Event) {
	s.history.Append(errorMs)
	snap := s.history.Snapshot()
	stats := snap.Stats()
	newly := s.rules.Evaluate(stats, s.unlocked)
	s.unlocked.Merge(newly)
	user := s.user
	if s.persistent() {
		s.writer.submit(user, "save", func(ctx context.Context) error {
			return s.storage.Save(ctx, user, snap)
		})
		if len(newly) > 0 {
			unlocked := s.unlocked.Clone()
			s.writer.submit(user, "save_unlocked", func(ctx context.Context) error {
				return s.storage.SaveUnlocked(ctx, user, unlocked)
			})
		}
	}

	res := AttemptResult{
		UserID:        user,
		ErrorMs:       errorMs,
		ScoreDelta:    core.Score(errorMs),
		Rating:        stats.Rating,
		TotalGames:    stats.TotalGames,
		BestRecord:    stats.BestRecord,
		NewlyUnlocked: append([]core.AchievementID{}, newly...),
	}
	events := make([]core.Event, 0, 1+len(newly))
	events = append(events, core.NewAttemptRecorded(user, errorMs, res.ScoreDelta, res.Rating, res.TotalGames))
	for _, id := range newly {
		events = append(events, core.NewAchievementUnlocked(user, id))
	}
	return res, events
}

// Clear wipes the history and counters after explicit confirmation.
// Unlocked achievements are permanent and survive.
func (s *Session) Clear(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	s.mu.Lock()
	s.watch.Reset()
	s.history.Clear()
	user := s.user
	if s.persistent() {
		s.writer.submit(user, "clear", func(ctx context.Context) error {
			return s.storage.Clear(ctx, user)
		})
	}
	s.mu.Unlock()
	s.publish(ctx, []core.Event{core.NewHistoryCleared(user)})
	return nil
}

// Snapshot returns the current window and counters.
func (s *Session) Snapshot() core.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Snapshot()
}

// Rating of the current window.
func (s *Session) Rating() float64 { return s.Snapshot().Rating() }

// Chart returns the most recent samples for display.
func (s *Session) Chart() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Recent(s.chart)
}

// Unlocked returns a copy of the unlocked achievements.
func (s *Session) Unlocked() core.UnlockedSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked.Clone()
}

// Profile combines stats and unlocked ids.
func (s *Session) Profile() Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Profile{
		UserID:   s.user,
		Stats:    s.history.Snapshot().Stats(),
		Unlocked: s.unlocked.IDs(),
	}
}

// Wait blocks until every scheduled write has been attempted.
func (s *Session) Wait() { s.writer.wait() }

func (s *Session) persistent() bool {
	return s.storage != nil && s.user != core.Anonymous
}

func (s *Session) publish(ctx context.Context, events []core.Event) {
	if s.bus == nil {
		return
	}
	for _, ev := range events {
		s.bus.Publish(ctx, ev)
	}
}

func (s *Session) onWriteFailed(user core.UserID, op string, err error) {
	s.logger.Warn("persisting game state failed", "user", user, "op", op, "error", err)
	s.publish(context.Background(), []core.Event{core.NewPersistFailed(user, op, err)})
}
