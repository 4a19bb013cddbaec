package sportsbook

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/avetor/internal/history"
	"github.com/lox/avetor/internal/wallet"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func catalog() *StaticCatalog {
	return NewStaticCatalog(DemoMatches(testNow))
}

func match(t *testing.T, id string) Match {
	t.Helper()
	m, ok := catalog().Match(id)
	require.True(t, ok, "match %s", id)
	return m
}

func TestCatalog(t *testing.T) {
	c := catalog()
	assert.Len(t, c.Matches(), 5)

	m, ok := c.Match("m2")
	require.True(t, ok)
	assert.Equal(t, "Real Madrid", m.HomeTeam)
	assert.Equal(t, StatusLive, m.Status)
	require.NotNil(t, m.Score)

	_, ok = c.Match("nope")
	assert.False(t, ok)
}

func TestOddsFor(t *testing.T) {
	soccer := match(t, "m1")
	o, ok := soccer.OddsFor(Draw)
	require.True(t, ok)
	assert.Equal(t, 3.40, o)

	nba := match(t, "m3")
	_, ok = nba.OddsFor(Draw)
	assert.False(t, ok, "basketball has no draw market")
}

func TestParseSelection(t *testing.T) {
	sel, ok := ParseSelection("away")
	assert.True(t, ok)
	assert.Equal(t, Away, sel)

	_, ok = ParseSelection("over")
	assert.False(t, ok)
}

func TestSlipReplacesSelectionForSameMatch(t *testing.T) {
	s := NewSlip()

	_, err := s.Add(match(t, "m1"), Home, decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = s.Add(match(t, "m3"), Away, decimal.NewFromInt(5))
	require.NoError(t, err)
	item, err := s.Add(match(t, "m1"), Away, decimal.NewFromInt(20))
	require.NoError(t, err)

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "m1:away", items[0].ID)
	assert.Equal(t, 2.80, items[0].Odds)
	assert.Equal(t, item, items[0])
	assert.Equal(t, "25.00", s.TotalStake().StringFixed(2))
}

func TestSlipRejectsBadInput(t *testing.T) {
	s := NewSlip()

	_, err := s.Add(match(t, "m3"), Draw, decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrUnknownSelection)

	_, err = s.Add(match(t, "m1"), Home, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidStake)

	assert.Equal(t, 0, s.Len())
}

func TestSlipRemoveAndSetStake(t *testing.T) {
	s := NewSlip()
	_, err := s.Add(match(t, "m1"), Home, decimal.NewFromInt(10))
	require.NoError(t, err)

	require.NoError(t, s.SetStake("m1:home", decimal.NewFromInt(40)))
	assert.Equal(t, "40.00", s.TotalStake().StringFixed(2))

	require.ErrorIs(t, s.SetStake("m1:home", decimal.NewFromInt(-1)), ErrInvalidStake)
	require.ErrorIs(t, s.SetStake("m9:home", decimal.NewFromInt(1)), ErrItemNotFound)

	require.NoError(t, s.Remove("m1:home"))
	require.ErrorIs(t, s.Remove("m1:home"), ErrItemNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestPlaceBets(t *testing.T) {
	w, err := wallet.NewLedger(decimal.NewFromInt(1000), nil)
	require.NoError(t, err)
	h := history.NewLog()

	s := NewSlip()
	_, err = s.Add(match(t, "m1"), Home, decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = s.Add(match(t, "m5"), Away, decimal.NewFromInt(15))
	require.NoError(t, err)

	entries, err := PlaceBets(w, h, s, testNow)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "975.00", w.Balance().StringFixed(2))
	assert.Len(t, w.Entries(), 1, "the slip is debited once")
	assert.Equal(t, 0, s.Len())

	logged := h.Entries()
	require.Len(t, logged, 2)
	assert.Equal(t, history.KindSportsBet, logged[0].Kind)
	assert.Equal(t, history.StatusPending, logged[0].Status)
	assert.Equal(t, "AWAY - T1 vs Gen.G", logged[0].Detail)
	assert.Equal(t, 1.70, logged[0].Multiplier)
	assert.True(t, logged[0].Payout.IsZero())
	assert.Equal(t, "HOME - Arsenal vs Liverpool", logged[1].Detail)
}

func TestPlaceBetsInsufficientBalance(t *testing.T) {
	w, err := wallet.NewLedger(decimal.NewFromInt(20), nil)
	require.NoError(t, err)
	h := history.NewLog()

	s := NewSlip()
	_, err = s.Add(match(t, "m1"), Home, decimal.NewFromInt(15))
	require.NoError(t, err)
	_, err = s.Add(match(t, "m2"), Draw, decimal.NewFromInt(15))
	require.NoError(t, err)

	_, err = PlaceBets(w, h, s, testNow)
	require.ErrorIs(t, err, wallet.ErrInsufficientBalance)

	assert.Equal(t, "20.00", w.Balance().StringFixed(2))
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 2, s.Len(), "slip is kept so the player can adjust it")
}

func TestPlaceBetsEmptySlip(t *testing.T) {
	w, err := wallet.NewLedger(decimal.NewFromInt(20), nil)
	require.NoError(t, err)

	_, err = PlaceBets(w, history.NewLog(), NewSlip(), testNow)
	require.ErrorIs(t, err, ErrEmptySlip)
}
