// Package wallet holds a session's balance. Every change goes through Debit
// or Credit and is journaled, and the balance is never negative.
package wallet

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidAmount is returned for negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// EntryKind says which way money moved.
type EntryKind string

const (
	KindDebit  EntryKind = "debit"
	KindCredit EntryKind = "credit"
)

// Entry is one journaled balance change.
type Entry struct {
	Kind          EntryKind       `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	Memo          string          `json:"memo,omitempty"`
	At            time.Time       `json:"at"`
}

// Ledger is a single player's balance.
type Ledger struct {
	mu      sync.Mutex
	balance decimal.Decimal
	entries []Entry
	clock   quartz.Clock
}

// NewLedger creates a ledger holding initial. A nil clock uses the real one.
func NewLedger(initial decimal.Decimal, clock quartz.Clock) (*Ledger, error) {
	if initial.IsNegative() {
		return nil, fmt.Errorf("initial balance %s: %w", initial, ErrInvalidAmount)
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Ledger{balance: initial, clock: clock}, nil
}

// Balance returns the current balance.
func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// Debit removes amount from the balance. It fails without side effects when
// amount is negative or larger than the balance.
func (l *Ledger) Debit(amount decimal.Decimal, memo string) error {
	if amount.IsNegative() {
		return fmt.Errorf("debit %s: %w", amount, ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if amount.GreaterThan(l.balance) {
		return fmt.Errorf("debit %s with balance %s: %w", amount.StringFixed(2), l.balance.StringFixed(2), ErrInsufficientBalance)
	}
	l.apply(KindDebit, amount, l.balance.Sub(amount), memo)
	return nil
}

// Credit adds amount to the balance. A negative amount is a caller bug and
// is rejected.
func (l *Ledger) Credit(amount decimal.Decimal, memo string) error {
	if amount.IsNegative() {
		return fmt.Errorf("credit %s: %w", amount, ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.apply(KindCredit, amount, l.balance.Add(amount), memo)
	return nil
}

// Entries returns the journal, oldest first.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) apply(kind EntryKind, amount, after decimal.Decimal, memo string) {
	l.entries = append(l.entries, Entry{
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: l.balance,
		BalanceAfter:  after,
		Memo:          memo,
		At:            l.clock.Now(),
	})
	l.balance = after
}
