package wallet

import (
	"sync"
	"testing"

	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T, initial string) *Ledger {
	t.Helper()
	l, err := NewLedger(decimal.RequireFromString(initial), quartz.NewMock(t))
	require.NoError(t, err)
	return l
}

func TestNewLedgerRejectsNegativeBalance(t *testing.T) {
	_, err := NewLedger(decimal.NewFromInt(-1), nil)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDebit(t *testing.T) {
	l := newLedger(t, "1000")

	require.NoError(t, l.Debit(decimal.NewFromInt(10), "stake"))
	assert.Equal(t, "990.00", l.Balance().StringFixed(2))

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, KindDebit, entries[0].Kind)
	assert.Equal(t, "1000.00", entries[0].BalanceBefore.StringFixed(2))
	assert.Equal(t, "990.00", entries[0].BalanceAfter.StringFixed(2))
	assert.Equal(t, "stake", entries[0].Memo)
}

func TestDebitInsufficientBalance(t *testing.T) {
	l := newLedger(t, "1000")

	err := l.Debit(decimal.NewFromInt(1500), "stake")
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, "1000.00", l.Balance().StringFixed(2))
	assert.Empty(t, l.Entries())
}

func TestDebitEntireBalance(t *testing.T) {
	l := newLedger(t, "25.50")

	require.NoError(t, l.Debit(decimal.RequireFromString("25.50"), ""))
	assert.True(t, l.Balance().IsZero())
}

func TestCredit(t *testing.T) {
	l := newLedger(t, "990")

	require.NoError(t, l.Credit(decimal.RequireFromString("19.90"), "payout"))
	assert.Equal(t, "1009.90", l.Balance().StringFixed(2))
}

func TestNegativeAmountsRejected(t *testing.T) {
	l := newLedger(t, "100")

	require.ErrorIs(t, l.Credit(decimal.NewFromInt(-5), ""), ErrInvalidAmount)
	require.ErrorIs(t, l.Debit(decimal.NewFromInt(-5), ""), ErrInvalidAmount)
	assert.Equal(t, "100.00", l.Balance().StringFixed(2))
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	l := newLedger(t, "100")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Debit(decimal.NewFromInt(3), "") == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 33, succeeded)
	assert.Equal(t, "1.00", l.Balance().StringFixed(2))
	assert.False(t, l.Balance().IsNegative())
}
