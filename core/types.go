package core

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"
)

// UserID identifies a player. The zero value is the anonymous local session.
type UserID string

// Anonymous is the identity of a local session that is never persisted.
const Anonymous UserID = ""

// ErrRecordNotFound is returned by storage adapters when an identity has no
// persisted record yet.
var ErrRecordNotFound = errors.New("record not found")

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(strings.ToLower(s)), nil
}

// UnlockedSet is the set of achievements a player has earned. It only grows.
type UnlockedSet map[AchievementID]struct{}

// NewUnlockedSet builds a set from ids.
func NewUnlockedSet(ids ...AchievementID) UnlockedSet {
	s := make(UnlockedSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s UnlockedSet) Has(id AchievementID) bool {
	_, ok := s[id]
	return ok
}

// Merge adds ids to the set and reports how many were new.
func (s UnlockedSet) Merge(ids []AchievementID) int {
	added := 0
	for _, id := range ids {
		if _, ok := s[id]; ok {
			continue
		}
		s[id] = struct{}{}
		added++
	}
	return added
}

// Clone returns an independent copy; a nil set clones to an empty one.
func (s UnlockedSet) Clone() UnlockedSet {
	cp := make(UnlockedSet, len(s))
	for k := range s {
		cp[k] = struct{}{}
	}
	return cp
}

// IDs returns the members sorted lexically.
func (s UnlockedSet) IDs() []AchievementID {
	out := make([]AchievementID, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON encodes the set as a sorted array of ids.
func (s UnlockedSet) MarshalJSON() ([]byte, error) { return json.Marshal(s.IDs()) }

func (s *UnlockedSet) UnmarshalJSON(b []byte) error {
	var ids []AchievementID
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*s = NewUnlockedSet(ids...)
	return nil
}

// Record is the persisted document for one identity.
type Record struct {
	UserID   UserID      `json:"user_id"`
	Snapshot             // history, totals, best
	Unlocked UnlockedSet `json:"unlocked"`
	Updated  time.Time   `json:"updated"`
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	return Record{
		UserID:   r.UserID,
		Snapshot: r.Snapshot.Clone(),
		Unlocked: r.Unlocked.Clone(),
		Updated:  r.Updated,
	}
}

// NewRecord returns an empty record for user.
func NewRecord(user UserID) Record {
	return Record{
		UserID:   user,
		Snapshot: Snapshot{History: []int64{}},
		Unlocked: UnlockedSet{},
		Updated:  time.Now().UTC(),
	}
}
