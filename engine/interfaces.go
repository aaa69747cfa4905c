package engine

import (
	"context"

	"just3sec/core"
)

// Storage abstracts persistence of per-identity game records.
// Load returns core.ErrRecordNotFound when nothing is stored for user.
type Storage interface {
	Load(ctx context.Context, user core.UserID) (core.Record, error)
	Save(ctx context.Context, user core.UserID, snap core.Snapshot) error
	SaveUnlocked(ctx context.Context, user core.UserID, unlocked core.UnlockedSet) error
	// Clear drops history and counters; unlocked achievements are kept.
	Clear(ctx context.Context, user core.UserID) error
}

// RuleEngine evaluates achievements against a stats snapshot.
type RuleEngine interface {
	Evaluate(stats core.Stats, unlocked core.UnlockedSet) []core.AchievementID
}

// IdentityProvider reports the signed-in identity and its changes.
type IdentityProvider interface {
	Current() (core.UserID, bool)
	OnChange(fn func(user core.UserID, ok bool)) (unsubscribe func())
}

var _ RuleEngine = (*core.Registry)(nil)
