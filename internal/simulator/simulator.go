// Package simulator measures an auto cash-out strategy by playing many crash
// rounds through the real engine.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/lox/avetor/internal/crash"
	"github.com/lox/avetor/internal/history"
	"github.com/lox/avetor/internal/randutil"
	"github.com/lox/avetor/internal/statistics"
)

// Config holds configuration for running simulations
type Config struct {
	Rounds  int
	Workers int
	Stake   decimal.Decimal
	// Target is the auto cash-out multiplier.
	Target float64
	Seed   int64
	Logger *log.Logger
}

// Simulator runs crash rounds in parallel
type Simulator struct {
	config Config
}

// New creates a new simulator with the given configuration
func New(config Config) (*Simulator, error) {
	if config.Rounds < 1 {
		return nil, fmt.Errorf("rounds must be positive, got %d", config.Rounds)
	}
	if !config.Stake.IsPositive() {
		return nil, fmt.Errorf("stake must be positive, got %s", config.Stake)
	}
	if config.Target <= crash.MinCrashPoint {
		return nil, fmt.Errorf("target must be above %.2fx, got %.2f", crash.MinCrashPoint, config.Target)
	}
	if config.Workers < 1 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	if config.Workers > config.Rounds {
		config.Workers = config.Rounds
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard)
	}
	return &Simulator{config: config}, nil
}

// Run plays every round and returns the merged statistics. Each worker draws
// from its own stream derived from the seed, so a seeded run is repeatable
// for a fixed worker count.
func (s *Simulator) Run(ctx context.Context) (*statistics.Statistics, error) {
	cfg := s.config
	perWorker := cfg.Rounds / cfg.Workers
	remainder := cfg.Rounds % cfg.Workers

	results := make([]*statistics.Statistics, cfg.Workers)
	g, ctx := errgroup.WithContext(ctx)

	for w := 0; w < cfg.Workers; w++ {
		rounds := perWorker
		if w < remainder {
			rounds++
		}

		g.Go(func() error {
			stats, err := s.runWorker(ctx, w, rounds)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			results[w] = stats
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := &statistics.Statistics{}
	for _, r := range results {
		total.Merge(r)
	}
	if err := total.Validate(); err != nil {
		return nil, fmt.Errorf("statistics validation failed: %w", err)
	}
	return total, nil
}

// tally is a wallet that never runs dry and keeps no journal.
type tally struct {
	debited  decimal.Decimal
	credited decimal.Decimal
}

func (t *tally) Debit(amount decimal.Decimal, _ string) error {
	t.debited = t.debited.Add(amount)
	return nil
}

func (t *tally) Credit(amount decimal.Decimal, _ string) error {
	t.credited = t.credited.Add(amount)
	return nil
}

// discard drops history entries.
type discard struct{}

func (discard) Append(history.Entry) {}

// settleAfter is far enough along the curve for any crash point.
const settleAfter = 24 * time.Hour

func (s *Simulator) runWorker(ctx context.Context, worker, rounds int) (*statistics.Statistics, error) {
	cfg := s.config
	w := &tally{}
	gen := crash.NewRandomGenerator(randutil.Worker(cfg.Seed, worker))
	engine := crash.NewEngine(w, discard{}, cfg.Logger,
		crash.WithGenerator(gen),
		crash.WithClock(quartz.NewReal()),
		crash.WithIDFunc(func() string { return "" }),
	)

	stake := cfg.Stake.InexactFloat64()
	cashAt := crash.TimeToMultiplier(cfg.Target)
	stats := &statistics.Statistics{}

	for i := 0; i < rounds; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		snap, err := engine.StartRound(cfg.Stake)
		if err != nil {
			return nil, err
		}

		result := statistics.RoundResult{Stake: stake}
		res, err := engine.CashOut(snap.StartedAt.Add(cashAt))
		switch {
		case err == nil:
			result.CashedOut = true
			result.Payout = res.Payout.InexactFloat64()
			if _, err := engine.Tick(snap.StartedAt.Add(settleAfter)); err != nil {
				return nil, err
			}
		case errors.Is(err, crash.ErrRoundNotRunning):
		default:
			return nil, err
		}

		result.CrashPoint = engine.Snapshot().CrashPoint
		stats.Add(result)
	}

	cfg.Logger.Debug("Worker finished", "worker", worker, "rounds", rounds,
		"staked", w.debited.StringFixed(2), "returned", w.credited.StringFixed(2))
	return stats, nil
}

// FormatReport renders stats as a plain-text summary.
func FormatReport(cfg Config, stats *statistics.Statistics, elapsed time.Duration) string {
	var b strings.Builder
	lo, hi := stats.ConfidenceInterval95()

	fmt.Fprintf(&b, "Rounds:        %d (%.0f/s)\n", stats.Rounds, float64(stats.Rounds)/elapsed.Seconds())
	fmt.Fprintf(&b, "Strategy:      stake %s, cash out at %.2fx\n", cfg.Stake.StringFixed(2), cfg.Target)
	fmt.Fprintf(&b, "Seed:          %d\n", cfg.Seed)
	fmt.Fprintf(&b, "Win rate:      %.2f%%\n", stats.WinRate()*100)
	fmt.Fprintf(&b, "RTP:           %.2f%%\n", stats.RTP()*100)
	fmt.Fprintf(&b, "Net/round:     %.4f (95%% CI %.4f .. %.4f, sd %.4f)\n", stats.Mean(), lo, hi, stats.StdDev())
	fmt.Fprintf(&b, "Crash points:  median %.2fx, p90 %.2fx, p99 %.2fx, max %.2fx\n",
		stats.CrashPercentile(0.5), stats.CrashPercentile(0.9), stats.CrashPercentile(0.99), stats.MaxCrashPoint)
	fmt.Fprintf(&b, "Buckets:       <2x %d, 2-10x %d, >=10x %d\n", stats.Low, stats.Mid, stats.High)
	return b.String()
}
