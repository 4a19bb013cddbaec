package statistics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatistics_Empty(t *testing.T) {
	stats := &Statistics{}

	assert.Zero(t, stats.Mean())
	assert.Zero(t, stats.Variance())
	assert.Zero(t, stats.StdDev())
	assert.Zero(t, stats.StdError())
	assert.Zero(t, stats.Median())
	assert.Zero(t, stats.Percentile(0.5))
	assert.Zero(t, stats.RTP())
	assert.Zero(t, stats.WinRate())
	assert.Error(t, stats.Validate())
}

func TestStatistics_SingleRound(t *testing.T) {
	stats := &Statistics{}
	stats.Add(RoundResult{CrashPoint: 3.2, Stake: 1, Payout: 2, CashedOut: true})

	assert.Equal(t, 1, stats.Rounds)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 1.0, stats.Mean())
	assert.Zero(t, stats.Variance())
	assert.Equal(t, 1.0, stats.Median())
	assert.Equal(t, 2.0, stats.RTP())
	assert.Equal(t, 1, stats.Mid)
	assert.NoError(t, stats.Validate())
}

func TestStatistics_MixedRounds(t *testing.T) {
	stats := &Statistics{}
	stats.Add(RoundResult{CrashPoint: 1.2, Stake: 1})
	stats.Add(RoundResult{CrashPoint: 2.5, Stake: 1, Payout: 2, CashedOut: true})
	stats.Add(RoundResult{CrashPoint: 15, Stake: 1, Payout: 2, CashedOut: true})
	stats.Add(RoundResult{CrashPoint: 1.0, Stake: 1})

	require.NoError(t, stats.Validate())

	assert.Equal(t, 4, stats.Rounds)
	assert.Equal(t, 0.5, stats.WinRate())
	assert.Equal(t, 1.0, stats.RTP())
	assert.Equal(t, 0.0, stats.Mean())
	// Net values -1, 1, 1, -1: sample variance 4/3
	assert.InDelta(t, 4.0/3.0, stats.Variance(), 1e-9)
	assert.InDelta(t, math.Sqrt(4.0/3.0)/2, stats.StdError(), 1e-9)

	lo, hi := stats.ConfidenceInterval95()
	assert.InDelta(t, -hi, lo, 1e-9)
	assert.Greater(t, hi, 0.0)

	assert.Equal(t, 15.0, stats.MaxCrashPoint)
	assert.Equal(t, 2, stats.Low)
	assert.Equal(t, 1, stats.Mid)
	assert.Equal(t, 1, stats.High)
	assert.Equal(t, 1.0, stats.CrashPercentile(0))
	assert.Equal(t, 15.0, stats.CrashPercentile(1))
	assert.InDelta(t, 1.85, stats.CrashPercentile(0.5), 1e-9)
}

func TestStatistics_Percentile(t *testing.T) {
	stats := &Statistics{}
	for i := 1; i <= 5; i++ {
		stats.Add(RoundResult{CrashPoint: 1, Stake: 0, Payout: float64(i)})
	}

	assert.Equal(t, 1.0, stats.Percentile(0))
	assert.Equal(t, 3.0, stats.Median())
	assert.Equal(t, 5.0, stats.Percentile(1))
	assert.InDelta(t, 2.0, stats.Percentile(0.25), 1e-9)
}

func TestStatistics_Merge(t *testing.T) {
	a := &Statistics{}
	a.Add(RoundResult{CrashPoint: 1.5, Stake: 1})
	b := &Statistics{}
	b.Add(RoundResult{CrashPoint: 12, Stake: 1, Payout: 3, CashedOut: true})
	b.Add(RoundResult{CrashPoint: 4, Stake: 1, Payout: 3, CashedOut: true})

	a.Merge(b)
	require.NoError(t, a.Validate())
	assert.Equal(t, 3, a.Rounds)
	assert.Equal(t, 2, a.Wins)
	assert.Equal(t, 12.0, a.MaxCrashPoint)
	assert.Equal(t, 2.0, a.RTP())
}

func TestStatistics_ValidateDetectsCorruption(t *testing.T) {
	stats := &Statistics{}
	stats.Add(RoundResult{CrashPoint: 2, Stake: 1})
	stats.Values = stats.Values[:0]
	assert.Error(t, stats.Validate())

	stats = &Statistics{}
	stats.Add(RoundResult{CrashPoint: 2, Stake: 1})
	stats.Returned = 10
	assert.Error(t, stats.Validate())
}
