package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates domain events.
type EventType string

const (
	EventAttemptRecorded     EventType = "attempt_recorded"
	EventAchievementUnlocked EventType = "achievement_unlocked"
	EventHistoryCleared      EventType = "history_cleared"
	EventIdentityChanged     EventType = "identity_changed"
	EventPersistFailed       EventType = "persist_failed"
)

// EventTypes lists every event type in a stable order.
func EventTypes() []EventType {
	return []EventType{
		EventAttemptRecorded,
		EventAchievementUnlocked,
		EventHistoryCleared,
		EventIdentityChanged,
		EventPersistFailed,
	}
}

// Event represents an immutable domain event.
type Event struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Time        time.Time      `json:"time"`
	UserID      UserID         `json:"user_id"`
	ErrorMs     int64          `json:"error_ms,omitempty"`
	Score       float64        `json:"score,omitempty"`
	Rating      float64        `json:"rating,omitempty"`
	TotalGames  int64          `json:"total_games,omitempty"`
	Achievement AchievementID  `json:"achievement,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func newEvent(typ EventType, user UserID) Event {
	return Event{ID: uuid.NewString(), Type: typ, Time: time.Now().UTC(), UserID: user}
}

func NewAttemptRecorded(user UserID, errorMs int64, score, rating float64, totalGames int64) Event {
	ev := newEvent(EventAttemptRecorded, user)
	ev.ErrorMs, ev.Score, ev.Rating, ev.TotalGames = errorMs, score, rating, totalGames
	return ev
}

func NewAchievementUnlocked(user UserID, id AchievementID) Event {
	ev := newEvent(EventAchievementUnlocked, user)
	ev.Achievement = id
	return ev
}

func NewHistoryCleared(user UserID) Event {
	return newEvent(EventHistoryCleared, user)
}

func NewIdentityChanged(user UserID) Event {
	return newEvent(EventIdentityChanged, user)
}

// NewPersistFailed reports a failed background write; op names the storage
// call that failed.
func NewPersistFailed(user UserID, op string, err error) Event {
	ev := newEvent(EventPersistFailed, user)
	ev.Error = err.Error()
	ev.Metadata = map[string]any{"op": op}
	return ev
}
