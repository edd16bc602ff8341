package iracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatingDeltas_EqualRatings(t *testing.T) {
	got := ratingDeltas([]ratingEntry{
		{carIdx: 1, classID: 1, rating: 2000, classPos: 1},
		{carIdx: 2, classID: 1, rating: 2000, classPos: 2},
	})
	assert.Equal(t, map[int]int{1: 100, 2: -100}, got)
}

func TestRatingDeltas_FavoriteWinsLess(t *testing.T) {
	got := ratingDeltas([]ratingEntry{
		{carIdx: 1, classID: 1, rating: 4000, classPos: 1},
		{carIdx: 2, classID: 1, rating: 1500, classPos: 2},
	})
	assert.Positive(t, got[1])
	assert.Less(t, got[1], 100)
	assert.Equal(t, -got[1], got[2])
}

func TestRatingDeltas_ZeroSumPerClass(t *testing.T) {
	entries := []ratingEntry{
		{carIdx: 1, classID: 1, rating: 2500, classPos: 3},
		{carIdx: 2, classID: 1, rating: 1800, classPos: 1},
		{carIdx: 3, classID: 1, rating: 3100, classPos: 2},
		{carIdx: 4, classID: 1, rating: 1200, classPos: 4},
		{carIdx: 5, classID: 2, rating: 2000, classPos: 1},
		{carIdx: 6, classID: 2, rating: 2100, classPos: 0},
	}
	got := ratingDeltas(entries)
	sum := got[1] + got[2] + got[3] + got[4]
	// rounding may leave a small remainder
	assert.LessOrEqual(t, max(sum, -sum), 2)
	assert.Positive(t, got[2])
	assert.Negative(t, got[4])
	// single classified car in its class
	assert.Equal(t, 0, got[5])
	_, ok := got[6]
	assert.False(t, ok)
}

func TestExpectedScore(t *testing.T) {
	assert.InDelta(t, 0.5, expectedScore(1500, 1500), 1e-9)
	assert.InDelta(t, 1.0, expectedScore(1500, 1500)+expectedScore(1500, 1500), 1e-9)
	assert.InDelta(t, 1.0, expectedScore(3000, 1000)+expectedScore(1000, 3000), 1e-9)
	assert.Greater(t, expectedScore(3000, 1000), 0.5)
}
