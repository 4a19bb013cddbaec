package crash

import (
	"errors"

	"github.com/lox/avetor/internal/wallet"
)

var (
	// ErrInsufficientBalance is returned by StartRound when the wallet
	// cannot cover the stake.
	ErrInsufficientBalance = wallet.ErrInsufficientBalance

	// ErrRoundAlreadyActive is returned by StartRound while a round is running.
	ErrRoundAlreadyActive = errors.New("round already active")

	// ErrRoundNotRunning is returned by Tick and CashOut outside a running
	// round, including a cash-out that lands on or past the crash point.
	ErrRoundNotRunning = errors.New("round not running")

	// ErrAlreadyCashedOut is returned by a second CashOut in the same round.
	ErrAlreadyCashedOut = errors.New("already cashed out")

	// ErrInvalidStake is returned for a stake that is not positive or, at
	// the session level, above the configured limit.
	ErrInvalidStake = errors.New("invalid stake")
)
