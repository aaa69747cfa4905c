package core

import (
	"sync"
	"time"
)

// Stopwatch is the idle/running timer behind one attempt.
type Stopwatch struct {
	mu      sync.Mutex
	now     func() time.Time
	started time.Time
	running bool
}

// NewStopwatch returns an idle stopwatch. A nil clock uses time.Now.
func NewStopwatch(now func() time.Time) *Stopwatch {
	if now == nil {
		now = time.Now
	}
	return &Stopwatch{now: now}
}

// Start begins timing. It reports false and changes nothing when already
// running.
func (s *Stopwatch) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.started = s.now()
	s.running = true
	return true
}

// Stop ends timing and returns the error against TargetMs. It reports false
// when the stopwatch was idle.
func (s *Stopwatch) Stop() (errorMs int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0, false
	}
	s.running = false
	return ErrorFromElapsed(s.now().Sub(s.started)), true
}

// Reset returns to idle without producing an attempt.
func (s *Stopwatch) Reset() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Stopwatch) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Elapsed is the time since Start, or zero when idle.
func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0
	}
	return s.now().Sub(s.started)
}
