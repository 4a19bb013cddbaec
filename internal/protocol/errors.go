package protocol

import (
	"errors"

	"github.com/lox/avetor/internal/crash"
	"github.com/lox/avetor/internal/session"
	"github.com/lox/avetor/internal/sportsbook"
	"github.com/lox/avetor/internal/wallet"
)

// Error codes sent to clients.
const (
	CodeInsufficientBalance = "insufficient_balance"
	CodeRoundAlreadyActive  = "round_already_active"
	CodeAlreadyCashedOut    = "already_cashed_out"
	CodeRoundNotRunning     = "round_not_running"
	CodeInvalidStake        = "invalid_stake"
	CodeInvalidRequest      = "invalid_request"
	CodeNotLoggedIn         = "not_logged_in"
	CodeSessionClosed       = "session_closed"
	CodeUnknownMessageType  = "unknown_message_type"
	CodeInternal            = "internal_error"
)

// CodeFor maps a domain error to its wire code.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, wallet.ErrInsufficientBalance):
		return CodeInsufficientBalance
	case errors.Is(err, crash.ErrRoundAlreadyActive):
		return CodeRoundAlreadyActive
	case errors.Is(err, crash.ErrAlreadyCashedOut):
		return CodeAlreadyCashedOut
	case errors.Is(err, crash.ErrRoundNotRunning):
		return CodeRoundNotRunning
	case errors.Is(err, crash.ErrInvalidStake),
		errors.Is(err, sportsbook.ErrInvalidStake),
		errors.Is(err, wallet.ErrInvalidAmount):
		return CodeInvalidStake
	case errors.Is(err, session.ErrSessionClosed):
		return CodeSessionClosed
	case errors.Is(err, sportsbook.ErrUnknownMatch),
		errors.Is(err, sportsbook.ErrUnknownSelection),
		errors.Is(err, sportsbook.ErrItemNotFound),
		errors.Is(err, sportsbook.ErrEmptySlip),
		errors.Is(err, session.ErrNoCommentator):
		return CodeInvalidRequest
	default:
		return CodeInternal
	}
}

// ErrorFrom builds an Error payload for err.
func ErrorFrom(err error) Error {
	return Error{Code: CodeFor(err), Message: err.Error()}
}
