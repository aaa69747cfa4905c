package core

const (
	// DefaultCapacity bounds the retained history window.
	DefaultCapacity = 50
	// ChartWindow is the number of recent samples shown on the chart.
	ChartWindow = 20
)

// Snapshot is an immutable read of a history window and its counters.
type Snapshot struct {
	History    []int64 `json:"history"`
	TotalGames int64   `json:"total_games"`
	BestRecord *int64  `json:"best_record,omitempty"`
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	cp := Snapshot{
		History:    append(make([]int64, 0, len(s.History)), s.History...),
		TotalGames: s.TotalGames,
	}
	if s.BestRecord != nil {
		b := *s.BestRecord
		cp.BestRecord = &b
	}
	return cp
}

// Rating of the retained window.
func (s Snapshot) Rating() float64 { return Rating(s.History) }

// Stats attaches the computed rating, the input of achievement evaluation.
func (s Snapshot) Stats() Stats {
	return Stats{Snapshot: s, Rating: s.Rating()}
}

// Stats is a snapshot plus its rating.
type Stats struct {
	Snapshot
	Rating float64 `json:"rating"`
}

// History is a capacity-bounded FIFO window of error samples together with
// the lifetime attempt count and best error. It is not safe for concurrent
// use; callers serialize access.
type History struct {
	capacity   int
	samples    []int64
	totalGames int64
	best       int64
	hasBest    bool
}

// NewHistory returns an empty history. A non-positive capacity selects
// DefaultCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity, samples: make([]int64, 0, capacity)}
}

func (h *History) Capacity() int { return h.capacity }

func (h *History) Len() int { return len(h.samples) }

// Append records sample, evicting the oldest one when the window is full.
func (h *History) Append(sample int64) {
	h.samples = append(h.samples, sample)
	if len(h.samples) > h.capacity {
		// shift in place so the backing array does not creep forward
		copy(h.samples, h.samples[1:])
		h.samples = h.samples[:h.capacity]
	}
	h.totalGames++
	if !h.hasBest || sample < h.best {
		h.best = sample
		h.hasBest = true
	}
}

// Clear resets the window and both counters.
func (h *History) Clear() {
	h.samples = h.samples[:0]
	h.totalGames = 0
	h.best = 0
	h.hasBest = false
}

// Snapshot copies the current state.
func (h *History) Snapshot() Snapshot {
	s := Snapshot{
		History:    append(make([]int64, 0, len(h.samples)), h.samples...),
		TotalGames: h.totalGames,
	}
	if h.hasBest {
		b := h.best
		s.BestRecord = &b
	}
	return s
}

// Recent returns up to n of the newest samples, oldest first.
func (h *History) Recent(n int) []int64 {
	if n <= 0 {
		return []int64{}
	}
	if n > len(h.samples) {
		n = len(h.samples)
	}
	out := make([]int64, n)
	copy(out, h.samples[len(h.samples)-n:])
	return out
}

// Restore replaces the state wholesale. Loaded windows longer than the
// capacity keep their newest samples.
func (h *History) Restore(s Snapshot) {
	samples := s.History
	if len(samples) > h.capacity {
		samples = samples[len(samples)-h.capacity:]
	}
	h.samples = append(h.samples[:0], samples...)
	h.totalGames = s.TotalGames
	h.hasBest = s.BestRecord != nil
	h.best = 0
	if h.hasBest {
		h.best = *s.BestRecord
	}
}
