package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"just3sec/core"
)

// Store persists every player record to a single JSON file.
// Suitable for the local CLI and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data map[core.UserID]core.Record
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.UserID]core.Record{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]core.Record
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		v.UserID = core.UserID(k)
		s.data[core.UserID(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]core.Record, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) get(user core.UserID) core.Record {
	if rec, ok := s.data[user]; ok {
		return rec
	}
	return core.NewRecord(user)
}

func (s *Store) Load(_ context.Context, user core.UserID) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[user]
	if !ok {
		return core.Record{}, core.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) Save(_ context.Context, user core.UserID, snap core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.get(user)
	rec.Snapshot = snap.Clone()
	rec.Updated = time.Now().UTC()
	s.data[user] = rec
	return s.persist()
}

func (s *Store) SaveUnlocked(_ context.Context, user core.UserID, unlocked core.UnlockedSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.get(user)
	rec.Unlocked = unlocked.Clone()
	rec.Updated = time.Now().UTC()
	s.data[user] = rec
	return s.persist()
}

// Clear resets history and counters but keeps the unlocked achievements.
func (s *Store) Clear(_ context.Context, user core.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[user]
	if !ok {
		return nil
	}
	rec.Snapshot = core.Snapshot{History: []int64{}}
	rec.Updated = time.Now().UTC()
	s.data[user] = rec
	return s.persist()
}
