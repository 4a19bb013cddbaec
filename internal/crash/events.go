package crash

import "time"

// EventType names a round transition.
type EventType string

const (
	EventRoundStarted EventType = "round_started"
	EventMultiplier   EventType = "multiplier"
	EventCashedOut    EventType = "cashed_out"
	EventRoundCrashed EventType = "round_crashed"
)

// Event is published after every change to the round. Round is the read
// model at the moment of the change.
type Event struct {
	Type  EventType
	Round Snapshot
	At    time.Time
}

// Subscriber receives round events in order. It runs on a goroutine that
// just changed the round. It may read from the engine but must not call
// StartRound, Tick, CashOut or Abandon synchronously.
type Subscriber interface {
	OnRoundEvent(Event)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(Event)

func (f SubscriberFunc) OnRoundEvent(ev Event) { f(ev) }
