package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScoreBounds(t *testing.T) {
	assert.Equal(t, 0.2, Score(0))
	assert.Equal(t, 0.0, Score(500))
	assert.Equal(t, 0.0, Score(501))
	assert.Equal(t, 0.0, Score(100000))
	assert.InDelta(t, 0.1, Score(125), 1e-12)
	assert.Equal(t, 0.2, Score(-10), "negative errors clamp to a perfect score")
}

func TestScoreNonIncreasing(t *testing.T) {
	prev := Score(0)
	for e := int64(1); e <= 500; e++ {
		cur := Score(e)
		if cur > prev {
			t.Fatalf("score increased at %dms: %v > %v", e, cur, prev)
		}
		prev = cur
	}
}

func TestRating(t *testing.T) {
	assert.Equal(t, 0.0, Rating(nil))
	assert.Equal(t, 0.0, Rating([]int64{}))
	assert.Equal(t, 0.6, Rating([]int64{0, 0, 0}))
	assert.Equal(t, 0.0, Rating([]int64{600, 2000, 501}))
	// 0.2 + 0.1 + 0
	assert.Equal(t, 0.3, Rating([]int64{0, 125, 900}))

	full := make([]int64, DefaultCapacity)
	assert.Equal(t, 10.0, Rating(full))
}

func TestRound2HalfAwayFromZero(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.125, 0.13},
		{1.005, 1.01},
		{2.675, 2.68},
		{0.6000000000000001, 0.6},
		{9.999999999999998, 10},
		{-1.005, -1.01},
		{3.004, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round2(tt.in), "Round2(%v)", tt.in)
	}
}

func TestErrorFromElapsed(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    int64
	}{
		{3 * time.Second, 0},
		{2999 * time.Millisecond, 1},
		{3777 * time.Millisecond, 777},
		{0, 3000},
		{2999*time.Millisecond + 500*time.Microsecond, 1},
		{3001*time.Millisecond + 400*time.Microsecond, 1},
		{10 * time.Second, 7000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorFromElapsed(tt.elapsed), "elapsed %s", tt.elapsed)
	}
}

func TestFeedbackOpacity(t *testing.T) {
	assert.Equal(t, 1.0, FeedbackOpacity(0))
	assert.Equal(t, 1.0, FeedbackOpacity(300*time.Millisecond))
	assert.Equal(t, 0.5, FeedbackOpacity(650*time.Millisecond))
	assert.Equal(t, 0.0, FeedbackOpacity(time.Second))
	assert.Equal(t, 0.0, FeedbackOpacity(5*time.Second))
}
