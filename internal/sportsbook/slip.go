package sportsbook

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lox/avetor/internal/history"
	"github.com/lox/avetor/internal/roundid"
)

var (
	ErrUnknownMatch     = errors.New("unknown match")
	ErrUnknownSelection = errors.New("selection not offered")
	ErrInvalidStake     = errors.New("stake must be positive")
	ErrItemNotFound     = errors.New("slip item not found")
	ErrEmptySlip        = errors.New("bet slip is empty")
)

// SlipItem is one selection on the slip.
type SlipItem struct {
	ID        string          `json:"id"`
	MatchID   string          `json:"matchId"`
	Selection Selection       `json:"selection"`
	Odds      float64         `json:"odds"`
	Stake     decimal.Decimal `json:"stake"`
	Match     Match           `json:"match"`
}

// Slip holds at most one selection per match.
type Slip struct {
	mu    sync.Mutex
	items []SlipItem
}

// NewSlip returns an empty slip.
func NewSlip() *Slip {
	return &Slip{}
}

// Add puts a selection on the slip, replacing any earlier selection on the
// same match.
func (s *Slip) Add(m Match, sel Selection, stake decimal.Decimal) (SlipItem, error) {
	odds, ok := m.OddsFor(sel)
	if !ok {
		return SlipItem{}, fmt.Errorf("%s %s: %w", m.ID, sel, ErrUnknownSelection)
	}
	stake = stake.Round(2)
	if !stake.IsPositive() {
		return SlipItem{}, ErrInvalidStake
	}

	item := SlipItem{
		ID:        m.ID + ":" + string(sel),
		MatchID:   m.ID,
		Selection: sel,
		Odds:      odds,
		Stake:     stake,
		Match:     m,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].MatchID == m.ID {
			s.items[i] = item
			return item, nil
		}
	}
	s.items = append(s.items, item)
	return item, nil
}

// Remove drops the item with id.
func (s *Slip) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, ErrItemNotFound)
}

// SetStake changes the stake of the item with id.
func (s *Slip) SetStake(id string, stake decimal.Decimal) error {
	stake = stake.Round(2)
	if !stake.IsPositive() {
		return ErrInvalidStake
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Stake = stake
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, ErrItemNotFound)
}

// Items returns the slip contents in the order they were added.
func (s *Slip) Items() []SlipItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SlipItem(nil), s.items...)
}

// Len returns the number of selections.
func (s *Slip) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// TotalStake sums the stakes on the slip.
func (s *Slip) TotalStake() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, it := range s.items {
		total = total.Add(it.Stake)
	}
	return total
}

// Clear empties the slip.
func (s *Slip) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// Wallet is debited the total stake of a placed slip.
type Wallet interface {
	Debit(amount decimal.Decimal, memo string) error
}

// History records placed bets.
type History interface {
	Append(history.Entry)
}

// PlaceBets debits the slip's total stake once and records one pending
// entry per selection, then clears the slip. Nothing changes on error.
func PlaceBets(w Wallet, h History, slip *Slip, now time.Time) ([]history.Entry, error) {
	items := slip.Items()
	if len(items) == 0 {
		return nil, ErrEmptySlip
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Stake)
	}
	if err := w.Debit(total, fmt.Sprintf("sports slip (%d selections)", len(items))); err != nil {
		return nil, fmt.Errorf("place bets: %w", err)
	}

	entries := make([]history.Entry, 0, len(items))
	for _, it := range items {
		e := history.Entry{
			ID:         roundid.New(),
			Kind:       history.KindSportsBet,
			Detail:     fmt.Sprintf("%s - %s vs %s", strings.ToUpper(string(it.Selection)), it.Match.HomeTeam, it.Match.AwayTeam),
			Stake:      it.Stake,
			Multiplier: it.Odds,
			Payout:     decimal.Zero,
			Status:     history.StatusPending,
			RecordedAt: now,
		}
		h.Append(e)
		entries = append(entries, e)
	}

	slip.Clear()
	return entries, nil
}
