// Package session wires one player's wallet, history, crash engine and bet
// slip together.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/shopspring/decimal"

	"github.com/lox/avetor/internal/crash"
	"github.com/lox/avetor/internal/history"
	"github.com/lox/avetor/internal/roundid"
	"github.com/lox/avetor/internal/sportsbook"
	"github.com/lox/avetor/internal/wallet"
)

// DefaultUsername is used when a login carries no name.
const DefaultUsername = "DemoUser"

var (
	ErrSessionClosed = errors.New("session closed")
	ErrNoCommentator = errors.New("match commentary unavailable")
)

// Commentator writes match previews. No implementation ships with avetor.
type Commentator = sportsbook.Analyst

// Config holds per-session settings.
type Config struct {
	Username       string
	InitialBalance decimal.Decimal
	TickInterval   time.Duration
	RecentLimit    int
	// MaxStake caps a crash stake; zero means no cap.
	MaxStake decimal.Decimal
}

// DefaultConfig returns the settings of the demo login.
func DefaultConfig() Config {
	return Config{
		Username:       DefaultUsername,
		InitialBalance: decimal.NewFromInt(1000),
		TickInterval:   50 * time.Millisecond,
		RecentLimit:    8,
	}
}

// Session is a logged-in player.
type Session struct {
	id       string
	username string
	cfg      Config

	clock       quartz.Clock
	generator   crash.Generator
	ledger      *wallet.Ledger
	history     *history.Log
	engine      *crash.Engine
	catalog     sportsbook.Catalog
	slip        *sportsbook.Slip
	commentator Commentator
	logger      *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	loop   *crash.Loop
	closed bool
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock shared by the ledger, engine and tick loop.
func WithClock(c quartz.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithGenerator sets the crash point generator.
func WithGenerator(g crash.Generator) Option {
	return func(s *Session) { s.generator = g }
}

// WithCatalog sets the sports catalog. Defaults to the demo matches.
func WithCatalog(c sportsbook.Catalog) Option {
	return func(s *Session) { s.catalog = c }
}

// WithCommentator enables AnalyzeMatch.
func WithCommentator(c Commentator) Option {
	return func(s *Session) { s.commentator = c }
}

// New logs a player in with the configured starting balance.
func New(cfg Config, logger *log.Logger, opts ...Option) (*Session, error) {
	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive, got %s", cfg.TickInterval)
	}

	s := &Session{
		id:       roundid.New(),
		username: cfg.Username,
		cfg:      cfg,
		history:  history.NewLog(),
		slip:     sportsbook.NewSlip(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = quartz.NewReal()
	}
	if s.catalog == nil {
		s.catalog = sportsbook.NewStaticCatalog(sportsbook.DemoMatches(s.clock.Now()))
	}
	s.logger = logger.With("session", s.id, "user", s.username)

	ledger, err := wallet.NewLedger(cfg.InitialBalance, s.clock)
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}
	s.ledger = ledger

	engineOpts := []crash.Option{crash.WithClock(s.clock)}
	if s.generator != nil {
		engineOpts = append(engineOpts, crash.WithGenerator(s.generator))
	}
	if cfg.RecentLimit > 0 {
		engineOpts = append(engineOpts, crash.WithRecentLimit(cfg.RecentLimit))
	}
	s.engine = crash.NewEngine(s.ledger, s.history, s.logger, engineOpts...)

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.logger.Info("Session opened", "balance", s.ledger.Balance().StringFixed(2))
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Username returns the player name.
func (s *Session) Username() string { return s.username }

// StartRound debits stake, starts a crash round and begins ticking it.
func (s *Session) StartRound(stake decimal.Decimal) (crash.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return crash.Snapshot{}, ErrSessionClosed
	}
	if s.cfg.MaxStake.IsPositive() && stake.GreaterThan(s.cfg.MaxStake) {
		return crash.Snapshot{}, fmt.Errorf("stake %s exceeds limit %s: %w", stake.StringFixed(2), s.cfg.MaxStake.StringFixed(2), crash.ErrInvalidStake)
	}

	snap, err := s.engine.StartRound(stake)
	if err != nil {
		return crash.Snapshot{}, err
	}

	if s.loop != nil {
		s.loop.Stop()
	}
	s.loop = crash.StartLoop(s.ctx, s.engine, s.clock, s.cfg.TickInterval)
	return snap, nil
}

// CashOut locks in the current multiplier.
func (s *Session) CashOut() (crash.CashOutResult, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return crash.CashOutResult{}, ErrSessionClosed
	}
	return s.engine.CashOut(s.clock.Now())
}

// Close stops the tick loop and settles any running round as a loss. It is
// safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	loop := s.loop
	s.loop = nil
	s.mu.Unlock()

	s.cancel()
	if loop != nil {
		loop.Stop()
		<-loop.Done()
	}
	if snap, ok := s.engine.Abandon(); ok {
		s.logger.Info("Abandoned running round", "round", snap.RoundID, "crashPoint", snap.CrashPoint)
	}
	s.logger.Info("Session closed", "balance", s.ledger.Balance().StringFixed(2))
	return nil
}

// Subscribe registers sub for round events.
func (s *Session) Subscribe(sub crash.Subscriber) func() {
	return s.engine.Subscribe(sub)
}

// Round returns the current round.
func (s *Session) Round() crash.Snapshot {
	return s.engine.Snapshot()
}

// RecentCrashPoints returns the last crash points, newest first.
func (s *Session) RecentCrashPoints() []float64 {
	return s.engine.RecentCrashPoints()
}

// Balance returns the wallet balance.
func (s *Session) Balance() decimal.Decimal {
	return s.ledger.Balance()
}

// Transactions returns the wallet ledger, oldest first.
func (s *Session) Transactions() []wallet.Entry {
	return s.ledger.Entries()
}

// History returns settled rounds and placed bets, newest first.
func (s *Session) History() []history.Entry {
	return s.history.Entries()
}

// ExportHistory writes the history as JSON to path.
func (s *Session) ExportHistory(path string) error {
	return s.history.WriteFile(path)
}

// Matches lists the sports catalog.
func (s *Session) Matches() []sportsbook.Match {
	return s.catalog.Matches()
}

// Slip returns the bet slip's selections.
func (s *Session) Slip() []sportsbook.SlipItem {
	return s.slip.Items()
}

// AddToSlip puts a selection for matchID on the slip.
func (s *Session) AddToSlip(matchID string, sel sportsbook.Selection, stake decimal.Decimal) (sportsbook.SlipItem, error) {
	m, ok := s.catalog.Match(matchID)
	if !ok {
		return sportsbook.SlipItem{}, fmt.Errorf("%s: %w", matchID, sportsbook.ErrUnknownMatch)
	}
	return s.slip.Add(m, sel, stake)
}

// RemoveFromSlip drops a slip item by id.
func (s *Session) RemoveFromSlip(id string) error {
	return s.slip.Remove(id)
}

// ClearSlip empties the bet slip.
func (s *Session) ClearSlip() {
	s.slip.Clear()
}

// PlaceSportsBets debits the slip total and records each selection.
func (s *Session) PlaceSportsBets() ([]history.Entry, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}

	entries, err := sportsbook.PlaceBets(s.ledger, s.history, s.slip, s.clock.Now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Sports bets placed", "selections", len(entries), "balance", s.ledger.Balance().StringFixed(2))
	return entries, nil
}

// AnalyzeMatch asks the commentator for a preview of matchID.
func (s *Session) AnalyzeMatch(ctx context.Context, matchID string) (string, error) {
	if s.commentator == nil {
		return "", ErrNoCommentator
	}
	m, ok := s.catalog.Match(matchID)
	if !ok {
		return "", fmt.Errorf("%s: %w", matchID, sportsbook.ErrUnknownMatch)
	}
	return s.commentator.AnalyzeMatch(ctx, m)
}
