// Package history keeps the append-only record of settled bets shown to the
// player: crash rounds and sports bets, newest first.
package history

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lox/avetor/internal/fileutil"
)

// Kind is the product an entry belongs to.
type Kind string

const (
	KindCrashRound Kind = "crash"
	KindSportsBet  Kind = "sports"
)

// Status is the outcome of an entry.
type Status string

const (
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
	StatusPending Status = "pending"
)

// Entry is an immutable record of one bet. Multiplier is the cash-out or
// crash multiplier for crash rounds and the odds for sports bets.
type Entry struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Detail     string          `json:"detail"`
	Stake      decimal.Decimal `json:"stake"`
	Multiplier float64         `json:"multiplier"`
	Payout     decimal.Decimal `json:"payout"`
	Status     Status          `json:"status"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// Log is the per-session history. Entries are stored oldest first so
// appends are O(1), and read back newest first.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append records e.
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entries returns a newest-first copy of the log.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[len(l.entries)-1-i] = e
	}
	return out
}

// Latest returns the most recent entry.
func (l *Log) Latest() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// WriteFile exports the log, newest first, as JSON.
func (l *Log) WriteFile(path string) error {
	return fileutil.WriteJSONAtomic(path, l.Entries(), 0o644)
}
