package iracing

import (
	"math"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ratingScale converts rating differences into the logistic exponent.
var ratingScale = 1600 / math.Ln2

// pointsPerRace is distributed between first and last place of a class.
const pointsPerRace = 200.0

type ratingEntry struct {
	carIdx   int
	classID  int
	rating   int
	classPos int // 1 based, 0 means not classified
}

func expectedScore(own, other int) float64 {
	return 1 / (1 + math.Exp(float64(other-own)/ratingScale))
}

// ratingDeltas estimates the rating change per car if the race ended with
// the current class positions. The deltas of a class are zero sum apart
// from rounding.
func ratingDeltas(entries []ratingEntry) map[int]int {
	ret := make(map[int]int, len(entries))
	classified := lo.Filter(entries, func(e ratingEntry, _ int) bool {
		return e.classPos > 0
	})
	for _, members := range lo.GroupBy(classified, func(e ratingEntry) int {
		return e.classID
	}) {
		n := len(members)
		if n < 2 {
			for _, m := range members {
				ret[m.carIdx] = 0
			}
			continue
		}
		for _, m := range members {
			expected := -0.5
			for _, o := range members {
				expected += expectedScore(m.rating, o.rating)
			}
			actual := float64(n - m.classPos)
			delta := (actual - expected) * pointsPerRace / float64(n-1)
			ret[m.carIdx] = int(decimal.NewFromFloat(delta).Round(0).IntPart())
		}
	}
	return ret
}
