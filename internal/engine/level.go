package engine

import "math"

// LevelCurve maps a level to the total XP threshold required to hold it.
// The curve's shape is external configuration; the engine only requires it
// to be monotonically increasing with curve(0) == 0.
type LevelCurve func(level int) int

const (
	// Defaults for the power curve: XP_req = 500 * level^1.5.
	DefaultCurveCoefficient = 500.0
	DefaultCurveExponent    = 1.5
)

// PowerCurve builds a LevelCurve of the form coef * level^exp.
func PowerCurve(coef, exp float64) LevelCurve {
	return func(level int) int {
		if level <= 0 {
			return 0
		}
		req := coef * math.Pow(float64(level), exp)
		// Ceil so float rounding never makes a threshold easier to reach.
		return int(math.Ceil(req))
	}
}

// DefaultLevelCurve is used when configuration supplies no curve parameters.
func DefaultLevelCurve() LevelCurve {
	return PowerCurve(DefaultCurveCoefficient, DefaultCurveExponent)
}

// LevelForXP returns the highest level L with totalXP >= curve(L).
func LevelForXP(curve LevelCurve, totalXP int) int {
	if totalXP <= 0 {
		return 0
	}

	// Exponential search for an upper bound, then binary search.
	low := 0
	high := 1
	for curve(high) <= totalXP {
		low = high
		high *= 2
		if high > 1_000_000 {
			break
		}
	}

	for low+1 < high {
		mid := low + (high-low)/2
		if curve(mid) <= totalXP {
			low = mid
		} else {
			high = mid
		}
	}
	return low
}
