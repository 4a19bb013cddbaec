// Package crash implements the crash game round: the crash point draw, the
// multiplier curve, the Idle -> Running -> Crashed state machine and its
// settlement against a wallet and a history log.
package crash

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/shopspring/decimal"

	"github.com/lox/avetor/internal/history"
	"github.com/lox/avetor/internal/randutil"
	"github.com/lox/avetor/internal/roundid"
)

// State is the lifecycle position of the engine's current round.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCrashed:
		return "crashed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Wallet is debited the stake when a round starts and credited the payout
// on cash-out.
type Wallet interface {
	Debit(amount decimal.Decimal, memo string) error
	Credit(amount decimal.Decimal, memo string) error
}

// History receives one entry per settled round.
type History interface {
	Append(history.Entry)
}

// Snapshot is the read model of a round. CrashPoint stays zero until the
// round has crashed.
type Snapshot struct {
	RoundID    string
	State      State
	Stake      decimal.Decimal
	Multiplier float64
	CrashPoint float64
	CashedOut  bool
	CashOut    float64
	Payout     decimal.Decimal
	StartedAt  time.Time
}

// CashOutResult is returned by a successful cash-out.
type CashOutResult struct {
	RoundID    string
	Multiplier float64
	Payout     decimal.Decimal
}

type round struct {
	id         string
	stake      decimal.Decimal
	crashPoint float64
	startedAt  time.Time
	multiplier float64
	cashedOut  bool
	cashOut    float64
	payout     decimal.Decimal
}

// Engine runs one round at a time for a single wallet. Tick and CashOut may
// be called from different goroutines; they are serialized so that a
// cash-out racing the crash resolves as a loss.
type Engine struct {
	mu        sync.Mutex
	state     State
	round     *round
	recent    []float64
	wallet    Wallet
	history   History
	generator Generator
	clock     quartz.Clock
	newID     func() string
	logger    *log.Logger

	recentLimit int

	// queue holds events in transition order; pubMu lets one goroutine at a
	// time drain it to subscribers.
	qmu         sync.Mutex
	queue       []Event
	pubMu       sync.Mutex
	subMu       sync.RWMutex
	subscribers map[int]Subscriber
	nextSub     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithGenerator sets the crash point generator.
func WithGenerator(g Generator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithClock sets the clock used for round start times.
func WithClock(c quartz.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRecentLimit sets how many past crash points RecentCrashPoints keeps.
func WithRecentLimit(n int) Option {
	return func(e *Engine) { e.recentLimit = n }
}

// WithIDFunc sets the round id generator.
func WithIDFunc(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// NewEngine creates an idle engine settling against w and h.
func NewEngine(w Wallet, h History, logger *log.Logger, opts ...Option) *Engine {
	e := &Engine{
		wallet:      w,
		history:     h,
		logger:      logger.WithPrefix("crash"),
		recentLimit: 8,
		subscribers: make(map[int]Subscriber),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = quartz.NewReal()
	}
	if e.generator == nil {
		e.generator = NewRandomGenerator(randutil.New(e.clock.Now().UnixNano()))
	}
	if e.newID == nil {
		e.newID = roundid.New
	}
	return e
}

// Subscribe registers s for round events and returns a function that
// removes it.
func (e *Engine) Subscribe(s Subscriber) func() {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subscribers[id] = s
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subscribers, id)
		e.subMu.Unlock()
	}
}

// StartRound debits stake and starts a new round with a freshly drawn crash
// point. On any error nothing changes.
func (e *Engine) StartRound(stake decimal.Decimal) (Snapshot, error) {
	e.mu.Lock()

	if e.state == StateRunning {
		e.mu.Unlock()
		return Snapshot{}, ErrRoundAlreadyActive
	}
	stake = stake.Round(2)
	if !stake.IsPositive() {
		e.mu.Unlock()
		return Snapshot{}, ErrInvalidStake
	}

	id := e.newID()
	if err := e.wallet.Debit(stake, "crash stake "+id); err != nil {
		e.mu.Unlock()
		return Snapshot{}, fmt.Errorf("start round: %w", err)
	}

	r := &round{
		id:         id,
		stake:      stake,
		crashPoint: e.generator.CrashPoint(),
		startedAt:  e.clock.Now(),
		multiplier: 1.0,
	}
	e.round = r
	e.state = StateRunning

	e.logger.Debug("Round started", "round", id, "stake", stake.StringFixed(2))

	snap := e.snapshotLocked()
	e.publishAndUnlock(Event{Type: EventRoundStarted, Round: snap, At: r.startedAt})
	return snap, nil
}

// Tick advances the round to now. When the curve reaches the crash point the
// round crashes and, if the player never cashed out, is settled as a loss.
func (e *Engine) Tick(now time.Time) (Snapshot, error) {
	e.mu.Lock()

	if e.state != StateRunning {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap, ErrRoundNotRunning
	}

	r := e.round
	m := MultiplierAt(now.Sub(r.startedAt).Seconds())

	var ev Event
	if m >= r.crashPoint {
		ev = e.crashLocked(now)
	} else {
		if m > r.multiplier {
			r.multiplier = m
		}
		ev = Event{Type: EventMultiplier, Round: e.snapshotLocked(), At: now}
	}

	e.publishAndUnlock(ev)
	return ev.Round, nil
}

// CashOut locks in the multiplier at now and pays stake × multiplier. A
// request that lands on or past the crash point crashes the round instead
// and fails with ErrRoundNotRunning. After a cash-out the round keeps
// running until it crashes, but no further cash-out is accepted.
func (e *Engine) CashOut(now time.Time) (CashOutResult, error) {
	e.mu.Lock()

	if e.state != StateRunning {
		e.mu.Unlock()
		return CashOutResult{}, ErrRoundNotRunning
	}

	r := e.round
	if r.cashedOut {
		e.mu.Unlock()
		return CashOutResult{}, ErrAlreadyCashedOut
	}

	m := MultiplierAt(now.Sub(r.startedAt).Seconds())
	if m < r.multiplier {
		m = r.multiplier
	}

	if m >= r.crashPoint {
		ev := e.crashLocked(now)
		e.publishAndUnlock(ev)
		return CashOutResult{}, fmt.Errorf("%w: crashed at %.2fx", ErrRoundNotRunning, ev.Round.CrashPoint)
	}

	payout := r.stake.Mul(decimal.NewFromFloat(m)).Round(2)
	if err := e.wallet.Credit(payout, "crash payout "+r.id); err != nil {
		e.mu.Unlock()
		return CashOutResult{}, fmt.Errorf("cash out: %w", err)
	}

	r.cashedOut = true
	r.cashOut = m
	r.payout = payout
	r.multiplier = m

	e.history.Append(history.Entry{
		ID:         r.id,
		Kind:       history.KindCrashRound,
		Detail:     fmt.Sprintf("Cashed out @ %.2fx", m),
		Stake:      r.stake,
		Multiplier: m,
		Payout:     payout,
		Status:     history.StatusWon,
		RecordedAt: now,
	})

	e.logger.Debug("Cashed out", "round", r.id, "multiplier", m, "payout", payout.StringFixed(2))

	result := CashOutResult{RoundID: r.id, Multiplier: m, Payout: payout}
	e.publishAndUnlock(Event{Type: EventCashedOut, Round: e.snapshotLocked(), At: now})
	return result, nil
}

// CashOutNow cashes out at the engine clock's current time.
func (e *Engine) CashOutNow() (CashOutResult, error) {
	return e.CashOut(e.clock.Now())
}

// Abandon settles a running round immediately as if it had crashed. It is
// used when the session ends mid-round. It reports whether a round was
// settled.
func (e *Engine) Abandon() (Snapshot, bool) {
	e.mu.Lock()

	if e.state != StateRunning {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap, false
	}

	e.logger.Debug("Abandoning round", "round", e.round.id)
	ev := e.crashLocked(e.clock.Now())
	e.publishAndUnlock(ev)
	return ev.Round, true
}

// Snapshot returns the read model of the current round.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// RecentCrashPoints returns the crash points of the last rounds, newest first.
func (e *Engine) RecentCrashPoints() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]float64, len(e.recent))
	copy(out, e.recent)
	return out
}

func (e *Engine) crashLocked(now time.Time) Event {
	r := e.round
	r.multiplier = r.crashPoint
	e.state = StateCrashed

	e.recent = append([]float64{r.crashPoint}, e.recent...)
	if e.recentLimit > 0 && len(e.recent) > e.recentLimit {
		e.recent = e.recent[:e.recentLimit]
	}

	if !r.cashedOut {
		e.history.Append(history.Entry{
			ID:         r.id,
			Kind:       history.KindCrashRound,
			Detail:     fmt.Sprintf("Crashed @ %.2fx", r.crashPoint),
			Stake:      r.stake,
			Multiplier: r.crashPoint,
			Payout:     decimal.Zero,
			Status:     history.StatusLost,
			RecordedAt: now,
		})
	}

	e.logger.Debug("Round crashed", "round", r.id, "crashPoint", r.crashPoint, "cashedOut", r.cashedOut)
	return Event{Type: EventRoundCrashed, Round: e.snapshotLocked(), At: now}
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{State: e.state, Multiplier: 1.0}
	r := e.round
	if r == nil {
		return snap
	}

	snap.RoundID = r.id
	snap.Stake = r.stake
	snap.Multiplier = r.multiplier
	snap.CashedOut = r.cashedOut
	snap.CashOut = r.cashOut
	snap.Payout = r.payout
	snap.StartedAt = r.startedAt
	if e.state == StateCrashed {
		snap.CrashPoint = r.crashPoint
	}
	return snap
}

// publishAndUnlock queues ev while mu is still held, so the queue is in
// transition order, then releases mu and delivers pending events.
func (e *Engine) publishAndUnlock(ev Event) {
	e.qmu.Lock()
	e.queue = append(e.queue, ev)
	e.qmu.Unlock()
	e.mu.Unlock()

	e.dispatch()
}

func (e *Engine) dispatch() {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	for {
		e.qmu.Lock()
		if len(e.queue) == 0 {
			e.qmu.Unlock()
			return
		}
		ev := e.queue[0]
		e.queue = e.queue[1:]
		e.qmu.Unlock()

		e.subMu.RLock()
		subs := make([]Subscriber, 0, len(e.subscribers))
		for _, s := range e.subscribers {
			subs = append(subs, s)
		}
		e.subMu.RUnlock()

		for _, s := range subs {
			s.OnRoundEvent(ev)
		}
	}
}
