package statistics

import (
	"fmt"
	"math"
	"sort"
)

// RoundResult is the outcome of one crash round under an auto cash-out
// strategy. Amounts are in stake units.
type RoundResult struct {
	CrashPoint float64
	Stake      float64
	Payout     float64 // 0 when the round crashed first
	CashedOut  bool
}

// Net is the round's profit or loss.
func (r RoundResult) Net() float64 {
	return r.Payout - r.Stake
}

// Statistics tracks crash simulation results
type Statistics struct {
	Rounds  int
	Wins    int
	SumNet  float64
	SumNet2 float64   // Sum of squares for variance calculation
	Values  []float64 // Net per round, for median/percentile calculation

	Staked   float64
	Returned float64

	CrashPoints   []float64
	MaxCrashPoint float64
	// Crash point buckets: below 2x, below 10x, 10x and above
	Low, Mid, High int
}

// Add incorporates a new round result into the statistics
func (s *Statistics) Add(r RoundResult) {
	net := r.Net()
	s.Rounds++
	s.SumNet += net
	s.SumNet2 += net * net
	s.Values = append(s.Values, net)
	s.Staked += r.Stake
	s.Returned += r.Payout
	if r.CashedOut {
		s.Wins++
	}

	s.CrashPoints = append(s.CrashPoints, r.CrashPoint)
	if r.CrashPoint > s.MaxCrashPoint {
		s.MaxCrashPoint = r.CrashPoint
	}
	switch {
	case r.CrashPoint < 2:
		s.Low++
	case r.CrashPoint < 10:
		s.Mid++
	default:
		s.High++
	}
}

// Merge folds other into s.
func (s *Statistics) Merge(other *Statistics) {
	s.Rounds += other.Rounds
	s.Wins += other.Wins
	s.SumNet += other.SumNet
	s.SumNet2 += other.SumNet2
	s.Values = append(s.Values, other.Values...)
	s.Staked += other.Staked
	s.Returned += other.Returned
	s.CrashPoints = append(s.CrashPoints, other.CrashPoints...)
	if other.MaxCrashPoint > s.MaxCrashPoint {
		s.MaxCrashPoint = other.MaxCrashPoint
	}
	s.Low += other.Low
	s.Mid += other.Mid
	s.High += other.High
}

// RTP is the return to player: total paid out over total staked.
func (s *Statistics) RTP() float64 {
	if s.Staked == 0 {
		return 0
	}
	return s.Returned / s.Staked
}

// WinRate is the share of rounds cashed out before the crash.
func (s *Statistics) WinRate() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Rounds)
}

// Mean returns the mean net result per round
func (s *Statistics) Mean() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return s.SumNet / float64(s.Rounds)
}

// Variance returns the sample variance of net results
func (s *Statistics) Variance() float64 {
	if s.Rounds < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.SumNet2 - float64(s.Rounds)*mean*mean) / float64(s.Rounds-1)
}

// StdDev returns the sample standard deviation of net results
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(math.Max(0, s.Variance()))
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Rounds))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// Median returns the median net result
func (s *Statistics) Median() float64 {
	return percentile(s.Values, 0.5)
}

// Percentile returns the net result at percentile p (0.0 to 1.0)
func (s *Statistics) Percentile(p float64) float64 {
	return percentile(s.Values, p)
}

// CrashPercentile returns the crash point at percentile p (0.0 to 1.0)
func (s *Statistics) CrashPercentile(p float64) float64 {
	return percentile(s.CrashPoints, p)
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// IsLedgerBalanced checks that net results add up to returned minus staked
func (s *Statistics) IsLedgerBalanced() bool {
	return math.Abs(s.SumNet-(s.Returned-s.Staked)) <= 1e-6*math.Max(1, s.Staked)
}

// Validate checks the internal consistency of the statistics
func (s *Statistics) Validate() error {
	if s.Rounds <= 0 {
		return fmt.Errorf("invalid rounds count: %d", s.Rounds)
	}
	if len(s.Values) != s.Rounds {
		return fmt.Errorf("values array length (%d) does not match rounds count (%d)",
			len(s.Values), s.Rounds)
	}
	if len(s.CrashPoints) != s.Rounds {
		return fmt.Errorf("crash points length (%d) does not match rounds count (%d)",
			len(s.CrashPoints), s.Rounds)
	}
	if s.Wins > s.Rounds {
		return fmt.Errorf("wins (%d) exceed rounds (%d)", s.Wins, s.Rounds)
	}
	if s.Low+s.Mid+s.High != s.Rounds {
		return fmt.Errorf("bucket total (%d) does not match rounds count (%d)",
			s.Low+s.Mid+s.High, s.Rounds)
	}
	if !s.IsLedgerBalanced() {
		return fmt.Errorf("ledger mismatch: net=%.6f, returned=%.6f, staked=%.6f",
			s.SumNet, s.Returned, s.Staked)
	}
	return nil
}
