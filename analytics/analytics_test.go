package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"just3sec/core"
)

func at(ev core.Event, ts time.Time) core.Event {
	ev.Time = ts
	return ev
}

func TestAttemptMetrics_OnEvent(t *testing.T) {
	metrics := NewAttemptMetrics()
	now := time.Now().UTC()

	metrics.OnEvent(at(core.NewAttemptRecorded("alice", 0, 0.2, 0.2, 1), now))
	metrics.OnEvent(at(core.NewAttemptRecorded("alice", 30, 0.19, 0.39, 2), now))
	metrics.OnEvent(at(core.NewAttemptRecorded("bob", 2000, 0, 0, 1), now))
	metrics.OnEvent(at(core.NewAchievementUnlocked("alice", "play_1"), now))
	metrics.OnEvent(at(core.NewAchievementUnlocked("bob", "play_1"), now))
	metrics.OnEvent(at(core.NewAchievementUnlocked("alice", "3sec_1"), now))
	metrics.OnEvent(core.NewPersistFailed("bob", "save", assert.AnError))
	metrics.OnEvent(core.NewHistoryCleared("bob"))

	day := now.Format("2006-01-02")
	assert.Equal(t, int64(3), metrics.AttemptsOn(day))
	assert.Equal(t, 676.67, metrics.MeanErrorOn(day))
	assert.Equal(t, 2, metrics.WeeklyActive(weekKey(now)))
	assert.Equal(t, 2, metrics.MonthlyActive(monthKey(now)))
	assert.Equal(t, int64(2), metrics.Unlocks("play_1"))

	attempts, unlocks := metrics.Realtime()
	assert.Equal(t, int64(3), attempts)
	assert.Equal(t, int64(3), unlocks)

	report := metrics.Report(1)
	assert.Equal(t, int64(1), report.PerfectAttempts)
	assert.Equal(t, int64(1), report.HistoryClears)
	assert.Equal(t, map[string]int64{"save": 1}, report.PersistFailures)
	require.Len(t, report.TopAchievements, 1)
	assert.Equal(t, core.AchievementID("play_1"), report.TopAchievements[0].Achievement)

	require.Len(t, report.ErrorHistogram, len(errorBuckets)+1)
	assert.Equal(t, int64(1), report.ErrorHistogram[0].Count) // 0ms
	assert.Equal(t, int64(1), report.ErrorHistogram[2].Count) // <=50ms
	last := report.ErrorHistogram[len(report.ErrorHistogram)-1]
	assert.Equal(t, int64(-1), last.UpperMs)
	assert.Equal(t, int64(1), last.Count)
}

func TestAttemptMetrics_RealtimeRolls(t *testing.T) {
	metrics := NewAttemptMetrics()
	clock := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	metrics.now = func() time.Time { return clock }

	metrics.OnEvent(core.NewAttemptRecorded("a", 1, 0.2, 0.2, 1))
	clock = clock.Add(12 * time.Hour)
	metrics.OnEvent(core.NewAttemptRecorded("a", 1, 0.2, 0.4, 2))
	metrics.OnEvent(core.NewAchievementUnlocked("a", "play_1"))

	attempts, unlocks := metrics.Realtime()
	assert.Equal(t, int64(2), attempts)
	assert.Equal(t, int64(1), unlocks)

	// the first attempt ages out, the later ones stay
	clock = clock.Add(12 * time.Hour)
	attempts, unlocks = metrics.Realtime()
	assert.Equal(t, int64(1), attempts)
	assert.Equal(t, int64(1), unlocks)

	// a slot reused a day later starts from zero
	metrics.OnEvent(core.NewAttemptRecorded("a", 1, 0.2, 0.6, 3))
	attempts, _ = metrics.Realtime()
	assert.Equal(t, int64(2), attempts)

	clock = clock.Add(48 * time.Hour)
	attempts, unlocks = metrics.Realtime()
	assert.Zero(t, attempts)
	assert.Zero(t, unlocks)
}

func TestAttemptMetrics_ReportLimit(t *testing.T) {
	metrics := NewAttemptMetrics()
	metrics.OnEvent(core.NewAchievementUnlocked("a", "play_1"))
	metrics.OnEvent(core.NewAchievementUnlocked("a", "3sec_1"))

	assert.Empty(t, metrics.Report(0).TopAchievements)
	assert.Len(t, metrics.Report(1).TopAchievements, 1)
	assert.Len(t, metrics.Report(-1).TopAchievements, 2)
}

func TestBucketOf(t *testing.T) {
	cases := map[int64]int{0: 0, 1: 1, 10: 1, 11: 2, 500: 5, 999: 6, 1000: 6, 1001: 7}
	for ms, want := range cases {
		assert.Equal(t, want, bucketOf(ms), "ms=%d", ms)
	}
}

func TestDAUAndBridge(t *testing.T) {
	dau := NewDAU()
	metrics := NewAttemptMetrics()
	bridge := NewBridge(dau, metrics)
	now := time.Now().UTC()

	bridge.OnEvent(at(core.NewAttemptRecorded("a", 5, 0.2, 0.2, 1), now))
	bridge.OnEvent(at(core.NewAttemptRecorded("b", 5, 0.2, 0.2, 1), now))
	bridge.OnEvent(at(core.NewAttemptRecorded("a", 5, 0.2, 0.4, 2), now))
	bridge.Handle(t.Context(), at(core.NewIdentityChanged("c"), now))

	assert.Equal(t, 2, dau.Count(now.Format("2006-01-02")))
	assert.Equal(t, int64(3), metrics.AttemptsOn(now.Format("2006-01-02")))
}
