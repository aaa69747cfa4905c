package analytics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"just3sec/core"
)

// Hook receives game events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// DAU tracks daily active users.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.UserID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.UserID]struct{}{}} }

func (d *DAU) OnEvent(e core.Event) {
	if e.Type != core.EventAttemptRecorded {
		return
	}
	day := dayKey(e.Time)
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
	}
	m[e.UserID] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// Error buckets, in milliseconds, used by the attempt histogram. The last
// bucket is open ended.
var errorBuckets = []int64{0, 10, 50, 100, 250, 500, 1000}

// AttemptMetrics aggregates attempts, unlocks and storage failures.
type AttemptMetrics struct {
	mu sync.RWMutex

	attemptsByDay   map[string]int64
	weeklyActive    map[string]map[core.UserID]struct{}
	monthlyActive   map[string]map[core.UserID]struct{}
	errorSumByDay   map[string]int64
	perfectAttempts int64
	histogram       []int64
	unlocksByID     map[core.AchievementID]int64
	clears          int64
	persistFailures map[string]int64

	// rolling 24 hours, one slot per hour of arrival
	realtime [24]hourSlot
	now      func() time.Time
}

type hourSlot struct {
	hour     int64
	attempts int64
	unlocks  int64
}

func hourOf(t time.Time) int64 { return t.Unix() / 3600 }

// slot returns the slot of hour, recycling it when it still holds an
// older hour.
func (m *AttemptMetrics) slot(hour int64) *hourSlot {
	s := &m.realtime[hour%int64(len(m.realtime))]
	if s.hour != hour {
		*s = hourSlot{hour: hour}
	}
	return s
}

func NewAttemptMetrics() *AttemptMetrics {
	m := &AttemptMetrics{
		attemptsByDay:   map[string]int64{},
		weeklyActive:    map[string]map[core.UserID]struct{}{},
		monthlyActive:   map[string]map[core.UserID]struct{}{},
		errorSumByDay:   map[string]int64{},
		histogram:       make([]int64, len(errorBuckets)+1),
		unlocksByID:     map[core.AchievementID]int64{},
		persistFailures: map[string]int64{},
		now:             time.Now,
	}
	return m
}

func (m *AttemptMetrics) OnEvent(e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.slot(hourOf(m.now()))

	switch e.Type {
	case core.EventAttemptRecorded:
		day := dayKey(e.Time)
		m.attemptsByDay[day]++
		m.errorSumByDay[day] += e.ErrorMs
		if e.ErrorMs == 0 {
			m.perfectAttempts++
		}
		m.histogram[bucketOf(e.ErrorMs)]++
		current.attempts++
		track(m.weeklyActive, weekKey(e.Time), e.UserID)
		track(m.monthlyActive, monthKey(e.Time), e.UserID)
	case core.EventAchievementUnlocked:
		m.unlocksByID[e.Achievement]++
		current.unlocks++
	case core.EventHistoryCleared:
		m.clears++
	case core.EventPersistFailed:
		op, _ := e.Metadata["op"].(string)
		m.persistFailures[op]++
	}
}

func track(into map[string]map[core.UserID]struct{}, key string, user core.UserID) {
	if into[key] == nil {
		into[key] = map[core.UserID]struct{}{}
	}
	into[key][user] = struct{}{}
}

// bucketOf returns the index of the first bucket bound >= ms.
func bucketOf(ms int64) int {
	return sort.Search(len(errorBuckets), func(i int) bool { return errorBuckets[i] >= ms })
}

// AttemptsOn is the number of attempts recorded on day (YYYY-MM-DD).
func (m *AttemptMetrics) AttemptsOn(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attemptsByDay[day]
}

// MeanErrorOn is the average error of the attempts of day, 0 without any.
func (m *AttemptMetrics) MeanErrorOn(day string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := m.attemptsByDay[day]
	if n == 0 {
		return 0
	}
	return core.Round2(float64(m.errorSumByDay[day]) / float64(n))
}

func (m *AttemptMetrics) WeeklyActive(week string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.weeklyActive[week])
}

func (m *AttemptMetrics) MonthlyActive(month string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.monthlyActive[month])
}

// Unlocks returns how often id was unlocked.
func (m *AttemptMetrics) Unlocks(id core.AchievementID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unlocksByID[id]
}

// Realtime returns attempts and unlocks of the last 24 hours, counted in
// whole hours including the current one.
func (m *AttemptMetrics) Realtime() (attempts, unlocks int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := hourOf(m.now())
	for _, s := range m.realtime {
		if age := now - s.hour; age >= 0 && age < int64(len(m.realtime)) {
			attempts += s.attempts
			unlocks += s.unlocks
		}
	}
	return attempts, unlocks
}

// Bucket is one histogram bar; UpperMs is -1 for the open-ended bucket.
type Bucket struct {
	UpperMs int64 `json:"upper_ms"`
	Count   int64 `json:"count"`
}

// UnlockCount is one entry of the most unlocked achievements.
type UnlockCount struct {
	Achievement core.AchievementID `json:"achievement"`
	Count       int64              `json:"count"`
}

// Report is the JSON shape served on the metrics endpoint.
type Report struct {
	AttemptsToday     int64            `json:"attempts_today"`
	MeanErrorToday    float64          `json:"mean_error_today_ms"`
	PerfectAttempts   int64            `json:"perfect_attempts"`
	AttemptsLast24h   int64            `json:"attempts_last_24h"`
	UnlocksLast24h    int64            `json:"unlocks_last_24h"`
	WeeklyActiveUsers int              `json:"weekly_active_users"`
	HistoryClears     int64            `json:"history_clears"`
	ErrorHistogram    []Bucket         `json:"error_histogram"`
	TopAchievements   []UnlockCount    `json:"top_achievements"`
	PersistFailures   map[string]int64 `json:"persist_failures"`
}

// Report summarises the aggregates; limit bounds TopAchievements and a
// negative limit lists them all.
func (m *AttemptMetrics) Report(limit int) Report {
	now := m.now()
	today := dayKey(now)
	attempts, unlocks := m.Realtime()

	m.mu.RLock()
	defer m.mu.RUnlock()

	hist := make([]Bucket, len(m.histogram))
	for i, c := range m.histogram {
		upper := int64(-1)
		if i < len(errorBuckets) {
			upper = errorBuckets[i]
		}
		hist[i] = Bucket{UpperMs: upper, Count: c}
	}

	top := lo.MapToSlice(m.unlocksByID, func(id core.AchievementID, n int64) UnlockCount {
		return UnlockCount{Achievement: id, Count: n}
	})
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Achievement < top[j].Achievement
	})
	if limit >= 0 && len(top) > limit {
		top = top[:limit]
	}

	var mean float64
	if n := m.attemptsByDay[today]; n > 0 {
		mean = core.Round2(float64(m.errorSumByDay[today]) / float64(n))
	}

	return Report{
		AttemptsToday:     m.attemptsByDay[today],
		MeanErrorToday:    mean,
		PerfectAttempts:   m.perfectAttempts,
		AttemptsLast24h:   attempts,
		UnlocksLast24h:    unlocks,
		WeeklyActiveUsers: len(m.weeklyActive[weekKey(now)]),
		HistoryClears:     m.clears,
		ErrorHistogram:    hist,
		TopAchievements:   top,
		PersistFailures:   lo.Assign(m.persistFailures),
	}
}

// Helper functions
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func weekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
