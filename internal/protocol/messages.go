// Package protocol defines the websocket messages exchanged between the
// avetor server and its clients.
package protocol

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lox/avetor/internal/crash"
	"github.com/lox/avetor/internal/history"
	"github.com/lox/avetor/internal/sportsbook"
)

// MessageType identifies the type of message
type MessageType string

const (
	// Client -> Server
	TypeLogin      MessageType = "login"
	TypeStartRound MessageType = "start_round"
	TypeCashOut    MessageType = "cash_out"
	TypeGetState   MessageType = "state"
	TypePlaceBets  MessageType = "place_bets"
	TypeGetHistory MessageType = "history"
	TypeGetMatches MessageType = "matches"

	// Server -> Client
	TypeLoggedIn     MessageType = "logged_in"
	TypeRoundStarted MessageType = "round_started"
	TypeMultiplier   MessageType = "multiplier"
	TypeCashedOut    MessageType = "cashed_out"
	TypeRoundCrashed MessageType = "round_crashed"
	TypeState        MessageType = "state"
	TypeBalance      MessageType = "balance"
	TypeHistory      MessageType = "history"
	TypeMatches      MessageType = "matches"
	TypeBetsPlaced   MessageType = "bets_placed"
	TypeError        MessageType = "error"
)

func (t MessageType) String() string {
	return string(t)
}

// Client -> Server payloads

// Login opens a session. An empty username logs in as the demo user.
type Login struct {
	Username string `json:"username"`
}

// StartRound stakes an amount on a new crash round.
type StartRound struct {
	Stake decimal.Decimal `json:"stake"`
}

// BetSelection is one line of a sports slip.
type BetSelection struct {
	MatchID   string               `json:"matchId"`
	Selection sportsbook.Selection `json:"selection"`
	Stake     decimal.Decimal      `json:"stake"`
}

// PlaceBets places a whole slip at once.
type PlaceBets struct {
	Selections []BetSelection `json:"selections"`
}

// Server -> Client payloads

// LoggedIn confirms a login.
type LoggedIn struct {
	SessionID string          `json:"sessionId"`
	Username  string          `json:"username"`
	Balance   decimal.Decimal `json:"balance"`
	Recent    []float64       `json:"recent"`
}

// Round describes the current crash round. CrashPoint is only set once the
// round has crashed.
type Round struct {
	RoundID    string          `json:"roundId"`
	State      string          `json:"state"`
	Stake      decimal.Decimal `json:"stake"`
	Multiplier float64         `json:"multiplier"`
	CrashPoint float64         `json:"crashPoint,omitempty"`
	CashedOut  bool            `json:"cashedOut"`
	CashOut    float64         `json:"cashOut,omitempty"`
	Payout     decimal.Decimal `json:"payout"`
	StartedAt  time.Time       `json:"startedAt"`
	Balance    decimal.Decimal `json:"balance"`
}

// State is the reply to a state request.
type State struct {
	Round   Round           `json:"round"`
	Balance decimal.Decimal `json:"balance"`
	Recent  []float64       `json:"recent"`
}

// Balance reports the wallet after a change.
type Balance struct {
	Balance decimal.Decimal `json:"balance"`
}

// History lists settled rounds and bets, newest first.
type History struct {
	Entries []history.Entry `json:"entries"`
}

// Matches lists the sports catalog.
type Matches struct {
	Matches []sportsbook.Match `json:"matches"`
}

// BetsPlaced confirms a placed slip.
type BetsPlaced struct {
	Entries []history.Entry `json:"entries"`
	Balance decimal.Decimal `json:"balance"`
}

// Error reports a rejected request.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RoundFromSnapshot converts the engine read model.
func RoundFromSnapshot(s crash.Snapshot, balance decimal.Decimal) Round {
	return Round{
		RoundID:    s.RoundID,
		State:      s.State.String(),
		Stake:      s.Stake,
		Multiplier: s.Multiplier,
		CrashPoint: s.CrashPoint,
		CashedOut:  s.CashedOut,
		CashOut:    s.CashOut,
		Payout:     s.Payout,
		StartedAt:  s.StartedAt,
		Balance:    balance,
	}
}

// TypeForEvent maps an engine event to the message that carries it.
func TypeForEvent(t crash.EventType) MessageType {
	switch t {
	case crash.EventRoundStarted:
		return TypeRoundStarted
	case crash.EventCashedOut:
		return TypeCashedOut
	case crash.EventRoundCrashed:
		return TypeRoundCrashed
	default:
		return TypeMultiplier
	}
}
