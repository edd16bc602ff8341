package iracing

import (
	"cmp"
	"math"
	"slices"
)

// cars within this fraction of a lap before the line are checked for a
// lap counter which already counts the lap they are still finishing.
const justStartedWindow = 0.9

type carProgress struct {
	carIdx        int
	classID       int
	lap           int // lap the car is currently on
	lapsCompleted int
	lapDistPct    float64
	official      int // position reported by the sim, 0 if unknown
}

// totalDistance returns the distance in laps used for the live order.
// Cars which are not in the world get -Inf.
func totalDistance(c carProgress) float64 {
	if c.lapDistPct < 0 {
		return math.Inf(-1)
	}
	laps := max(c.lapsCompleted, -1)
	dist := float64(laps) + c.lapDistPct
	if c.lapDistPct > justStartedWindow && c.lapsCompleted >= c.lap {
		dist--
	}
	return dist
}

// liveOrder sorts the cars by total distance (descending). Ties are broken
// by official position (known positions first) and then by car index.
func liveOrder(cars []carProgress) []carProgress {
	ret := slices.Clone(cars)
	dist := make(map[int]float64, len(cars))
	for _, c := range cars {
		dist[c.carIdx] = totalDistance(c)
	}
	slices.SortStableFunc(ret, func(a, b carProgress) int {
		if d := cmp.Compare(dist[b.carIdx], dist[a.carIdx]); d != 0 {
			return d
		}
		if a.official != b.official {
			switch {
			case a.official == 0:
				return 1
			case b.official == 0:
				return -1
			}
			return cmp.Compare(a.official, b.official)
		}
		return cmp.Compare(a.carIdx, b.carIdx)
	})
	return ret
}

type positions struct {
	overall int
	class   int
}

// assignPositions computes overall and class positions from the live
// order. Cars not in the world get no position.
func assignPositions(ordered []carProgress) map[int]positions {
	ret := make(map[int]positions, len(ordered))
	classCounter := make(map[int]int)
	overall := 0
	for _, c := range ordered {
		if c.lapDistPct < 0 {
			ret[c.carIdx] = positions{}
			continue
		}
		overall++
		classCounter[c.classID]++
		ret[c.carIdx] = positions{overall: overall, class: classCounter[c.classID]}
	}
	return ret
}
