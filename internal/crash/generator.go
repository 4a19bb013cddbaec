package crash

import "math"

const (
	// HouseEdge scales every raw draw.
	HouseEdge = 0.95

	// MaxCrashPoint replaces a raw draw that is not finite.
	MaxCrashPoint = 100.0

	// MinCrashPoint is the floor every round reaches before it can crash.
	MinCrashPoint = 1.0
)

// RandSource yields uniform draws in [0, 1). *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// Generator fixes the crash point of a new round.
type Generator interface {
	CrashPoint() float64
}

// CrashPointFromDraw maps a uniform draw r in [0, 1) to a crash point:
// 1/(1-r) scaled by the house edge, floored at 1.00 and rounded to cents.
// A draw that drives the raw value to infinity is clamped to MaxCrashPoint.
func CrashPointFromDraw(r float64) float64 {
	raw := 1 / (1 - r)
	if math.IsInf(raw, 0) || math.IsNaN(raw) {
		raw = MaxCrashPoint
	}
	return Round(math.Max(MinCrashPoint, raw*HouseEdge))
}

// GenerateCrashPoint draws one crash point from src.
func GenerateCrashPoint(src RandSource) float64 {
	return CrashPointFromDraw(src.Float64())
}

// RandomGenerator draws crash points from a random source. It is not safe
// for concurrent use; the engine calls it under its own lock.
type RandomGenerator struct {
	src RandSource
}

// NewRandomGenerator wraps src.
func NewRandomGenerator(src RandSource) *RandomGenerator {
	return &RandomGenerator{src: src}
}

func (g *RandomGenerator) CrashPoint() float64 {
	return GenerateCrashPoint(g.src)
}

// FixedCrashPoint always crashes at the same multiplier.
type FixedCrashPoint float64

func (f FixedCrashPoint) CrashPoint() float64 {
	return Round(math.Max(MinCrashPoint, float64(f)))
}

// Round rounds v to two decimal places. Every multiplier the engine stores
// or compares goes through it.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}
