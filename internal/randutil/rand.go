// Package randutil builds the random sources used for crash point draws.
package randutil

import (
	rand "math/rand/v2"
	"time"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a *rand.Rand seeded deterministically from seed. Two sources
// built from the same seed produce the same sequence of draws.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Worker returns an independent stream for the n-th worker of a seeded run.
func Worker(seed int64, n int) *rand.Rand {
	return New(int64(mix(uint64(seed) + uint64(n+1)*goldenRatio64)))
}

// Seed picks the seed for a run: the configured one when non-zero, otherwise
// one derived from now.
func Seed(configured int64, now time.Time) int64 {
	if configured != 0 {
		return configured
	}
	return now.UnixNano()
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
