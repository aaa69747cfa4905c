package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statsOf(history ...int64) Stats {
	return Snapshot{History: history, TotalGames: int64(len(history))}.Stats()
}

func TestDefaultRegistryCatalogue(t *testing.T) {
	r := DefaultRegistry()
	require.Equal(t, 19, r.Len())
	assert.Len(t, r.ByCategory(CategoryRating), 6)
	assert.Len(t, r.ByCategory(CategoryZero), 4)
	assert.Len(t, r.ByCategory(CategoryPlay), 5)
	assert.Len(t, r.ByCategory(CategoryExpert), 4)

	a, ok := r.Get(CompletionID)
	require.True(t, ok)
	assert.True(t, a.Secret)
	assert.Len(t, r.Requires(), 18)
	assert.NotContains(t, r.Requires(), CompletionID)

	_, ok = r.Get("nope")
	assert.False(t, ok)
}

func TestEvaluateEmptyStatsUnlocksNothing(t *testing.T) {
	assert.Empty(t, DefaultRegistry().Evaluate(statsOf(), UnlockedSet{}))
}

func TestPlay1UnlocksOnFirstAttempt(t *testing.T) {
	r := DefaultRegistry()
	h := NewHistory(DefaultCapacity)
	assert.NotContains(t, r.Evaluate(h.Snapshot().Stats(), UnlockedSet{}), AchievementID("play_1"))

	h.Append(800)
	assert.Equal(t, []AchievementID{"play_1"}, r.Evaluate(h.Snapshot().Stats(), UnlockedSet{}))
}

func TestEvaluateReportsRegistryOrder(t *testing.T) {
	got := DefaultRegistry().Evaluate(statsOf(777, 1, 0), nil)
	assert.Equal(t, []AchievementID{"3sec_1", "play_1", "expert_1ms", "expert_777ms"}, got)
}

func TestEvaluateSkipsUnlocked(t *testing.T) {
	got := DefaultRegistry().Evaluate(statsOf(0, 0), NewUnlockedSet("3sec_1", "play_1"))
	assert.Equal(t, []AchievementID{"3sec_2"}, got)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	r := DefaultRegistry()
	stats := statsOf(0, 1, 777, 2000, 2000, 2000, 2000, 2000)
	unlocked := UnlockedSet{}
	first := r.Evaluate(stats, unlocked)
	require.NotEmpty(t, first)
	unlocked.Merge(first)
	assert.Empty(t, r.Evaluate(stats, unlocked))
}

func TestThresholds(t *testing.T) {
	r := DefaultRegistry()
	tests := []struct {
		name  string
		stats Stats
		want  AchievementID
		hit   bool
	}{
		{"rating exactly 3", Stats{Rating: 3}, "rating_3", true},
		{"rating just below 3", Stats{Rating: 2.99}, "rating_3", false},
		{"rating 10", Stats{Rating: 10}, "rating_10", true},
		{"ten perfect", statsOf(0, 0, 0, 0, 0, 0, 0, 0, 0, 0), "3sec_10", true},
		{"nine perfect", statsOf(0, 0, 0, 0, 0, 0, 0, 0, 0), "3sec_10", false},
		{"ten games", Stats{Snapshot: Snapshot{TotalGames: 10}}, "play_10", true},
		{"9999 games", Stats{Snapshot: Snapshot{TotalGames: 9999}}, "play_10000", false},
		{"10000 games", Stats{Snapshot: Snapshot{TotalGames: 10000}}, "play_10000", true},
		{"five lazy", statsOf(2000, 2500, 9000, 2000, 3000), "expert_lazy", true},
		{"four lazy", statsOf(2000, 2500, 9000, 1999, 3000), "expert_lazy", false},
		{"777 present", statsOf(5, 777), "expert_777ms", true},
		{"778 only", statsOf(778), "expert_777ms", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Evaluate(tt.stats, UnlockedSet{})
			if tt.hit {
				assert.Contains(t, got, tt.want)
			} else {
				assert.NotContains(t, got, tt.want)
			}
		})
	}
}

func TestFullWindowOfPerfectAttemptsReachesTen(t *testing.T) {
	h := NewHistory(DefaultCapacity)
	for i := 0; i < DefaultCapacity; i++ {
		h.Append(0)
	}
	got := DefaultRegistry().Evaluate(h.Snapshot().Stats(), nil)
	assert.Contains(t, got, AchievementID("rating_10"))
	assert.Contains(t, got, AchievementID("3sec_10"))
	assert.NotContains(t, got, AchievementID("3sec_100"))
}

func TestCompletionLagsOneEvaluation(t *testing.T) {
	r := DefaultRegistry()
	unlocked := UnlockedSet{}
	for _, id := range r.Requires() {
		if id != "expert_lazy" {
			unlocked[id] = struct{}{}
		}
	}
	stats := statsOf(2000, 2000, 2000, 2000, 2000)

	first := r.Evaluate(stats, unlocked)
	assert.Equal(t, []AchievementID{"expert_lazy"}, first)

	unlocked.Merge(first)
	second := r.Evaluate(stats, unlocked)
	assert.Equal(t, []AchievementID{CompletionID}, second)

	unlocked.Merge(second)
	assert.Empty(t, r.Evaluate(stats, unlocked))
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry([]Achievement{{ID: "a", Kind: KindRating}, {ID: "a", Kind: KindRating}})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewRegistry([]Achievement{{ID: "", Kind: KindRating}})
	assert.ErrorContains(t, err, "empty id")

	_, err = NewRegistry([]Achievement{{ID: "a", Kind: KindCompletion}, {ID: "b", Kind: KindCompletion}})
	assert.Error(t, err)

	_, err = NewRegistry([]Achievement{{ID: "a"}})
	assert.ErrorContains(t, err, "unknown kind")
}

func TestCustomRegistryCompletion(t *testing.T) {
	r, err := NewRegistry([]Achievement{
		{ID: "first", Kind: KindTotalGames, Count: 1},
		{ID: "all", Kind: KindCompletion},
	})
	require.NoError(t, err)
	stats := Stats{Snapshot: Snapshot{TotalGames: 1}}
	assert.Equal(t, []AchievementID{"first"}, r.Evaluate(stats, nil))
	assert.Equal(t, []AchievementID{"all"}, r.Evaluate(stats, NewUnlockedSet("first")))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "completion", KindCompletion.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
