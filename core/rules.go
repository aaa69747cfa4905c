package core

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

// AchievementID is the stable identifier of an achievement.
type AchievementID string

// Category groups achievements for display.
type Category string

const (
	CategoryRating Category = "rating"
	CategoryZero   Category = "3sec"
	CategoryPlay   Category = "play"
	CategoryExpert Category = "expert"
)

// Kind selects the condition an achievement is evaluated with.
type Kind int

const (
	// KindRating: Rating >= Threshold.
	KindRating Kind = iota + 1
	// KindExactCount: samples equal to Value number at least Count.
	KindExactCount
	// KindTotalGames: TotalGames >= Count.
	KindTotalGames
	// KindExactValue: some sample equals Value.
	KindExactValue
	// KindAtLeastCount: samples >= Value number at least Count.
	KindAtLeastCount
	// KindCompletion: every other achievement of the registry is unlocked.
	KindCompletion
)

func (k Kind) String() string {
	switch k {
	case KindRating:
		return "rating"
	case KindExactCount:
		return "exact_count"
	case KindTotalGames:
		return "total_games"
	case KindExactValue:
		return "exact_value"
	case KindAtLeastCount:
		return "at_least_count"
	case KindCompletion:
		return "completion"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Achievement is a declarative unlock rule.
type Achievement struct {
	ID          AchievementID `json:"id"`
	Category    Category      `json:"category"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Secret      bool          `json:"secret"`
	Kind        Kind          `json:"-"`
	Threshold   float64       `json:"-"`
	Value       int64         `json:"-"`
	Count       int64         `json:"-"`
}

// Registry is an ordered, immutable set of achievements.
type Registry struct {
	rules      []Achievement
	index      map[AchievementID]int
	completion []AchievementID // ids the completion rule waits for
}

// NewRegistry validates rules and precomputes the completion dependencies.
func NewRegistry(rules []Achievement) (*Registry, error) {
	r := &Registry{
		rules: append([]Achievement(nil), rules...),
		index: make(map[AchievementID]int, len(rules)),
	}
	completions := 0
	for i, a := range r.rules {
		if a.ID == "" {
			return nil, fmt.Errorf("achievement %d: empty id", i)
		}
		if _, dup := r.index[a.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement id %q", a.ID)
		}
		if a.Kind < KindRating || a.Kind > KindCompletion {
			return nil, fmt.Errorf("achievement %q: unknown kind %d", a.ID, int(a.Kind))
		}
		if a.Kind == KindCompletion {
			completions++
		}
		r.index[a.ID] = i
	}
	if completions > 1 {
		return nil, errors.New("at most one completion achievement is allowed")
	}
	for _, a := range r.rules {
		if a.Kind != KindCompletion {
			r.completion = append(r.completion, a.ID)
		}
	}
	return r, nil
}

// Evaluate returns, in registry order, the achievements not yet in unlocked
// whose condition holds for stats. The completion rule reads unlocked as
// given, so it can only fire on a later call than the last rule it needs.
func (r *Registry) Evaluate(stats Stats, unlocked UnlockedSet) []AchievementID {
	var out []AchievementID
	for _, a := range r.rules {
		if unlocked.Has(a.ID) {
			continue
		}
		if r.satisfied(a, stats, unlocked) {
			out = append(out, a.ID)
		}
	}
	return out
}

func (r *Registry) satisfied(a Achievement, s Stats, unlocked UnlockedSet) bool {
	switch a.Kind {
	case KindRating:
		return s.Rating >= a.Threshold
	case KindExactCount:
		return int64(lo.Count(s.History, a.Value)) >= a.Count
	case KindTotalGames:
		return s.TotalGames >= a.Count
	case KindExactValue:
		return lo.Contains(s.History, a.Value)
	case KindAtLeastCount:
		n := lo.CountBy(s.History, func(e int64) bool { return e >= a.Value })
		return int64(n) >= a.Count
	case KindCompletion:
		return lo.EveryBy(r.completion, unlocked.Has)
	}
	return false
}

// All returns the achievements in registry order.
func (r *Registry) All() []Achievement { return append([]Achievement(nil), r.rules...) }

func (r *Registry) Len() int { return len(r.rules) }

// Get looks up an achievement by id.
func (r *Registry) Get(id AchievementID) (Achievement, bool) {
	i, ok := r.index[id]
	if !ok {
		return Achievement{}, false
	}
	return r.rules[i], true
}

// ByCategory returns the achievements of one category in registry order.
func (r *Registry) ByCategory(c Category) []Achievement {
	return lo.Filter(r.rules, func(a Achievement, _ int) bool { return a.Category == c })
}

// Requires lists the ids the completion achievement depends on.
func (r *Registry) Requires() []AchievementID {
	return append([]AchievementID(nil), r.completion...)
}

// CompletionID is the achievement unlocked once all others are.
const CompletionID AchievementID = "expert_complete"

// DefaultAchievements is the game's catalogue.
func DefaultAchievements() []Achievement {
	return []Achievement{
		{ID: "rating_3", Category: CategoryRating, Name: "Beginner", Description: "Reach a rating of 3.000 or higher", Kind: KindRating, Threshold: 3},
		{ID: "rating_5", Category: CategoryRating, Name: "Intermediate", Description: "Reach a rating of 5.000 or higher", Kind: KindRating, Threshold: 5},
		{ID: "rating_7", Category: CategoryRating, Name: "On Fire", Description: "Reach a rating of 7.000 or higher", Kind: KindRating, Threshold: 7},
		{ID: "rating_8", Category: CategoryRating, Name: "Expert", Description: "Reach a rating of 8.000 or higher", Kind: KindRating, Threshold: 8},
		{ID: "rating_9", Category: CategoryRating, Name: "Divine", Description: "Reach a rating of 9.000 or higher", Kind: KindRating, Threshold: 9},
		{ID: "rating_10", Category: CategoryRating, Name: "Cheater?", Description: "Reach a rating of 10.000 or higher", Kind: KindRating, Threshold: 10},

		{ID: "3sec_1", Category: CategoryZero, Name: "Nice!", Description: "Get a 0ms record for the first time", Kind: KindExactCount, Value: 0, Count: 1},
		{ID: "3sec_2", Category: CategoryZero, Name: "Fluke?", Description: "Get a 0ms record 2 times", Kind: KindExactCount, Value: 0, Count: 2},
		{ID: "3sec_10", Category: CategoryZero, Name: "Skill", Description: "Get a 0ms record 10 times", Kind: KindExactCount, Value: 0, Count: 10},
		{ID: "3sec_100", Category: CategoryZero, Name: "Practically 20.00 Rating", Description: "Get a 0ms record 100 times", Kind: KindExactCount, Value: 0, Count: 100},

		{ID: "play_1", Category: CategoryPlay, Name: "First Step", Description: "Play 1 game", Kind: KindTotalGames, Count: 1},
		{ID: "play_10", Category: CategoryPlay, Name: "Warming Up", Description: "Play 10 games", Kind: KindTotalGames, Count: 10},
		{ID: "play_100", Category: CategoryPlay, Name: "Is This Fun?", Description: "Play 100 games", Kind: KindTotalGames, Count: 100},
		{ID: "play_1000", Category: CategoryPlay, Name: "...I See", Description: "Play 1000 games", Kind: KindTotalGames, Count: 1000},
		{ID: "play_10000", Category: CategoryPlay, Name: "Server Storage Running Out!?", Description: "Play 10000 games", Kind: KindTotalGames, Count: 10000},

		{ID: "expert_1ms", Category: CategoryExpert, Name: "So Close", Description: "Get a 1ms record", Secret: true, Kind: KindExactValue, Value: 1},
		{ID: "expert_777ms", Category: CategoryExpert, Name: "Lucky", Description: "Get a 777ms record", Secret: true, Kind: KindExactValue, Value: 777},
		{ID: "expert_lazy", Category: CategoryExpert, Name: "Playing Casually?", Description: "Get 5 or more records with 2000ms+ error", Secret: true, Kind: KindAtLeastCount, Value: 2000, Count: 5},
		{ID: CompletionID, Category: CategoryExpert, Name: "Fully Understood", Description: "Unlock all other achievements", Secret: true, Kind: KindCompletion},
	}
}

var defaultRegistry = func() *Registry {
	r, err := NewRegistry(DefaultAchievements())
	if err != nil {
		panic(err)
	}
	return r
}()

// DefaultRegistry returns the shared registry built from DefaultAchievements.
func DefaultRegistry() *Registry { return defaultRegistry }
