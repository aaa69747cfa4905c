package engine

import (
	"context"
	"sync"

	"just3sec/core"
)

type writeJob struct {
	user core.UserID
	op   string
	run  func(context.Context) error
}

// writer applies storage writes in the background, one at a time and in
// submission order. Submitting never blocks on I/O. Failed writes are
// reported through onFail and not retried.
type writer struct {
	mu      sync.Mutex
	queue   []writeJob
	running bool
	pending sync.WaitGroup
	onFail  func(user core.UserID, op string, err error)
}

func newWriter(onFail func(core.UserID, string, error)) *writer {
	return &writer{onFail: onFail}
}

func (w *writer) submit(user core.UserID, op string, run func(context.Context) error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending.Add(1)
	w.queue = append(w.queue, writeJob{user: user, op: op, run: run})
	if !w.running {
		w.running = true
		go w.drain()
	}
}

func (w *writer) drain() {
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			w.running = false
			w.mu.Unlock()
			return
		}
		job := w.queue[0]
		w.queue[0] = writeJob{}
		w.queue = w.queue[1:]
		w.mu.Unlock()

		if err := job.run(context.Background()); err != nil && w.onFail != nil {
			w.onFail(job.user, job.op, err)
		}
		w.pending.Done()
	}
}

func (w *writer) wait() { w.pending.Wait() }

// idle reports whether nothing is queued or being written.
func (w *writer) idle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.running && len(w.queue) == 0
}
