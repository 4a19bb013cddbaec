package session

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/avetor/internal/crash"
	"github.com/lox/avetor/internal/history"
	"github.com/lox/avetor/internal/sportsbook"
)

const tick = 100 * time.Millisecond

type fakeCommentator struct{}

func (fakeCommentator) AnalyzeMatch(_ context.Context, m sportsbook.Match) (string, error) {
	return m.HomeTeam + " look sharp", nil
}

func newTestSession(t *testing.T, crashPoint float64, opts ...Option) (*Session, *quartz.Mock) {
	t.Helper()
	clock := quartz.NewMock(t)
	cfg := DefaultConfig()
	cfg.TickInterval = tick

	opts = append([]Option{WithClock(clock), WithGenerator(crash.FixedCrashPoint(crashPoint))}, opts...)
	s, err := New(cfg, log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel}), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func advance(t *testing.T, clock *quartz.Mock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < n; i++ {
		clock.Advance(tick).MustWait(ctx)
	}
}

func runUntilCrashed(t *testing.T, s *Session, clock *quartz.Mock) {
	t.Helper()
	for i := 0; s.Round().State == crash.StateRunning; i++ {
		require.Less(t, i, 1000, "round never crashed")
		advance(t, clock, 1)
	}
}

func TestNewSessionDefaults(t *testing.T) {
	s, _ := newTestSession(t, 2)

	assert.Equal(t, DefaultUsername, s.Username())
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, "1000.00", s.Balance().StringFixed(2))
	assert.Equal(t, crash.StateIdle, s.Round().State)
	assert.Empty(t, s.History())
	assert.Len(t, s.Matches(), 5)
}

func TestNewRejectsBadConfig(t *testing.T) {
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})

	cfg := DefaultConfig()
	cfg.TickInterval = 0
	_, err := New(cfg, logger)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.InitialBalance = decimal.NewFromInt(-5)
	_, err = New(cfg, logger, WithClock(quartz.NewMock(t)))
	require.Error(t, err)
}

func TestRoundTicksAndCashOut(t *testing.T) {
	s, clock := newTestSession(t, 2)

	_, err := s.StartRound(decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, "990.00", s.Balance().StringFixed(2))

	advance(t, clock, 15)
	assert.Equal(t, 1.35, s.Round().Multiplier)

	res, err := s.CashOut()
	require.NoError(t, err)
	assert.Equal(t, 1.35, res.Multiplier)
	assert.Equal(t, "13.50", res.Payout.StringFixed(2))
	assert.Equal(t, "1003.50", s.Balance().StringFixed(2))

	_, err = s.CashOut()
	assert.ErrorIs(t, err, crash.ErrAlreadyCashedOut)

	runUntilCrashed(t, s, clock)
	assert.Equal(t, 2.0, s.Round().CrashPoint)

	h := s.History()
	require.Len(t, h, 1)
	assert.Equal(t, history.StatusWon, h[0].Status)
	assert.Equal(t, []float64{2.0}, s.RecentCrashPoints())
}

func TestRoundLostWithoutCashOut(t *testing.T) {
	s, clock := newTestSession(t, 1.5)

	_, err := s.StartRound(decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = s.StartRound(decimal.NewFromInt(10))
	assert.ErrorIs(t, err, crash.ErrRoundAlreadyActive)

	runUntilCrashed(t, s, clock)

	_, err = s.CashOut()
	assert.ErrorIs(t, err, crash.ErrRoundNotRunning)

	assert.Equal(t, "990.00", s.Balance().StringFixed(2))
	h := s.History()
	require.Len(t, h, 1)
	assert.Equal(t, history.StatusLost, h[0].Status)
	assert.Equal(t, "Crashed @ 1.50x", h[0].Detail)

	_, err = s.StartRound(decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.Equal(t, "985.00", s.Balance().StringFixed(2))
}

func TestMaxStake(t *testing.T) {
	clock := quartz.NewMock(t)
	cfg := DefaultConfig()
	cfg.MaxStake = decimal.NewFromInt(50)
	s, err := New(cfg, log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel}), WithClock(clock))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.StartRound(decimal.NewFromInt(51))
	assert.ErrorIs(t, err, crash.ErrInvalidStake)
	assert.Equal(t, "1000.00", s.Balance().StringFixed(2))
}

func TestCloseAbandonsRunningRound(t *testing.T) {
	s, clock := newTestSession(t, 3)

	_, err := s.StartRound(decimal.NewFromInt(10))
	require.NoError(t, err)
	advance(t, clock, 3)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	snap := s.Round()
	assert.Equal(t, crash.StateCrashed, snap.State)
	assert.Equal(t, 3.0, snap.CrashPoint)

	h := s.History()
	require.Len(t, h, 1)
	assert.Equal(t, history.StatusLost, h[0].Status)
	assert.Equal(t, "990.00", s.Balance().StringFixed(2))

	_, err = s.StartRound(decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.CashOut()
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSubscribeSeesRoundEvents(t *testing.T) {
	s, clock := newTestSession(t, 1.2)

	events := make(chan crash.Event, 64)
	unsubscribe := s.Subscribe(crash.SubscriberFunc(func(ev crash.Event) { events <- ev }))
	defer unsubscribe()

	_, err := s.StartRound(decimal.NewFromInt(1))
	require.NoError(t, err)
	runUntilCrashed(t, s, clock)

	first := <-events
	assert.Equal(t, crash.EventRoundStarted, first.Type)

	var last crash.Event
	for len(events) > 0 {
		last = <-events
	}
	assert.Equal(t, crash.EventRoundCrashed, last.Type)
	assert.Equal(t, 1.2, last.Round.CrashPoint)
}

func TestSportsBets(t *testing.T) {
	s, _ := newTestSession(t, 2)

	_, err := s.AddToSlip("m1", sportsbook.Home, decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = s.AddToSlip("m4", sportsbook.Away, decimal.NewFromInt(5))
	require.NoError(t, err)
	_, err = s.AddToSlip("nope", sportsbook.Home, decimal.NewFromInt(5))
	assert.ErrorIs(t, err, sportsbook.ErrUnknownMatch)

	require.NoError(t, s.RemoveFromSlip("m4:away"))
	require.Len(t, s.Slip(), 1)

	entries, err := s.PlaceSportsBets()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.StatusPending, entries[0].Status)
	assert.Equal(t, "990.00", s.Balance().StringFixed(2))
	assert.Empty(t, s.Slip())

	_, err = s.PlaceSportsBets()
	assert.ErrorIs(t, err, sportsbook.ErrEmptySlip)
	assert.Len(t, s.Transactions(), 2)
}

func TestAnalyzeMatch(t *testing.T) {
	s, _ := newTestSession(t, 2)
	_, err := s.AnalyzeMatch(context.Background(), "m1")
	assert.True(t, errors.Is(err, ErrNoCommentator))

	s2, _ := newTestSession(t, 2, WithCommentator(fakeCommentator{}))
	text, err := s2.AnalyzeMatch(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "Arsenal look sharp", text)

	_, err = s2.AnalyzeMatch(context.Background(), "m9")
	assert.ErrorIs(t, err, sportsbook.ErrUnknownMatch)
}
