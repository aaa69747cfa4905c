package core

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// TargetMs is the stopwatch time every attempt aims for.
	TargetMs = 3000
	// ScoreCutoffMs is the largest error that still earns points.
	ScoreCutoffMs = 500
	// MaxSampleScore is awarded for a perfect attempt.
	MaxSampleScore = 0.2
)

// Score maps a timing error to its point value in [0, MaxSampleScore].
// Negative errors are treated as perfect.
func Score(errorMs int64) float64 {
	if errorMs > ScoreCutoffMs {
		return 0
	}
	if errorMs < 0 {
		errorMs = 0
	}
	return math.Max(0, MaxSampleScore*(1-math.Sqrt(float64(errorMs)/ScoreCutoffMs)))
}

// Rating sums Score over the whole retained window and rounds to 2 places.
func Rating(history []int64) float64 {
	if len(history) == 0 {
		return 0
	}
	var sum float64
	for _, e := range history {
		sum += Score(e)
	}
	return Round2(sum)
}

// Round2 rounds half away from zero on the shortest decimal form of v,
// so Round2(1.005) is 1.01 even though 1.005 is not exact in binary.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// ErrorFromElapsed converts a stopwatch reading into the error in whole
// milliseconds, rounding half away from zero.
func ErrorFromElapsed(elapsed time.Duration) int64 {
	ms := float64(elapsed) / float64(time.Millisecond)
	return int64(math.Round(math.Abs(ms - TargetMs)))
}

const (
	fadeStart = 300 * time.Millisecond
	fadeEnd   = 1000 * time.Millisecond
)

// FeedbackOpacity is the visibility of the running display: fully visible
// until 300ms, fading linearly, gone from 1000ms on.
func FeedbackOpacity(elapsed time.Duration) float64 {
	switch {
	case elapsed <= fadeStart:
		return 1
	case elapsed >= fadeEnd:
		return 0
	}
	return 1 - float64(elapsed-fadeStart)/float64(fadeEnd-fadeStart)
}
