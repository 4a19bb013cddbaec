package crash

import (
	"math"
	"time"
)

// GrowthRate is the exponent of the multiplier curve per second.
const GrowthRate = 0.2

// MultiplierAt returns the multiplier after elapsedSeconds of a round:
// max(1, e^(0.2t)) rounded to cents. It is 1.00 at t = 0.
func MultiplierAt(elapsedSeconds float64) float64 {
	return Round(math.Max(1.0, math.Exp(GrowthRate*elapsedSeconds)))
}

// MultiplierAfter is MultiplierAt for a duration.
func MultiplierAfter(d time.Duration) float64 {
	return MultiplierAt(d.Seconds())
}

// TimeToMultiplier returns how long the curve takes to reach m. Multipliers
// at or below 1 are reached immediately.
func TimeToMultiplier(m float64) time.Duration {
	if m <= 1 {
		return 0
	}
	seconds := math.Log(m) / GrowthRate
	if seconds*float64(time.Second) > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(math.Ceil(seconds * float64(time.Second)))
}
