package memory

import (
	"context"
	"sync"
	"time"

	"just3sec/core"
)

// Store is a concurrent in-memory Storage implementation.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
}

type userRecord struct {
	mu  sync.Mutex
	rec core.Record
}

func New() *Store { return &Store{} }

func (s *Store) getOrCreate(user core.UserID) *userRecord {
	if v, ok := s.users.Load(user); ok {
		return v.(*userRecord)
	}
	actual, _ := s.users.LoadOrStore(user, &userRecord{rec: core.NewRecord(user)})
	return actual.(*userRecord)
}

func (s *Store) Load(_ context.Context, user core.UserID) (core.Record, error) {
	v, ok := s.users.Load(user)
	if !ok {
		return core.Record{}, core.ErrRecordNotFound
	}
	ur := v.(*userRecord)
	ur.mu.Lock()
	defer ur.mu.Unlock()
	return ur.rec.Clone(), nil
}

func (s *Store) Save(_ context.Context, user core.UserID, snap core.Snapshot) error {
	ur := s.getOrCreate(user)
	ur.mu.Lock()
	defer ur.mu.Unlock()
	ur.rec.Snapshot = snap.Clone()
	ur.rec.Updated = time.Now().UTC()
	return nil
}

func (s *Store) SaveUnlocked(_ context.Context, user core.UserID, unlocked core.UnlockedSet) error {
	ur := s.getOrCreate(user)
	ur.mu.Lock()
	defer ur.mu.Unlock()
	ur.rec.Unlocked = unlocked.Clone()
	ur.rec.Updated = time.Now().UTC()
	return nil
}

func (s *Store) Clear(_ context.Context, user core.UserID) error {
	v, ok := s.users.Load(user)
	if !ok {
		return nil
	}
	ur := v.(*userRecord)
	ur.mu.Lock()
	defer ur.mu.Unlock()
	ur.rec.Snapshot = core.Snapshot{History: []int64{}}
	ur.rec.Updated = time.Now().UTC()
	return nil
}

var _ interface {
	Load(context.Context, core.UserID) (core.Record, error)
	Save(context.Context, core.UserID, core.Snapshot) error
	SaveUnlocked(context.Context, core.UserID, core.UnlockedSet) error
	Clear(context.Context, core.UserID) error
} = (*Store)(nil)
