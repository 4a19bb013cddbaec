package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/lox/avetor/internal/protocol"
)

// BotConfig is an auto cash-out strategy.
type BotConfig struct {
	Rounds int
	Stake  decimal.Decimal
	// Target is the multiplier at which the bot cashes out.
	Target float64
}

// BotResult summarises a bot run.
type BotResult struct {
	Rounds   int
	Wins     int
	Losses   int
	Staked   decimal.Decimal
	Returned decimal.Decimal
	Balance  decimal.Decimal
}

// RTP is the share of stakes paid back.
func (r BotResult) RTP() float64 {
	if r.Staked.IsZero() {
		return 0
	}
	return r.Returned.Div(r.Staked).InexactFloat64()
}

// Bot plays crash rounds over a Client.
type Bot struct {
	client *Client
	cfg    BotConfig
	logger *log.Logger
}

// NewBot creates a bot for a logged-in client.
func NewBot(c *Client, cfg BotConfig, logger *log.Logger) (*Bot, error) {
	if cfg.Rounds < 1 {
		return nil, fmt.Errorf("rounds must be positive, got %d", cfg.Rounds)
	}
	if !cfg.Stake.IsPositive() {
		return nil, fmt.Errorf("stake must be positive, got %s", cfg.Stake)
	}
	if cfg.Target <= 1 {
		return nil, fmt.Errorf("target must be above 1.00x, got %.2f", cfg.Target)
	}
	return &Bot{client: c, cfg: cfg, logger: logger.WithPrefix("bot")}, nil
}

// Run plays until the configured number of rounds is done, the balance runs
// out or ctx is cancelled. The partial result is returned with any error.
func (b *Bot) Run(ctx context.Context) (BotResult, error) {
	res := BotResult{Staked: decimal.Zero, Returned: decimal.Zero}

	for res.Rounds < b.cfg.Rounds {
		balance, err := b.client.StartRound(ctx, b.cfg.Stake)
		var serr *ServerError
		if errors.As(err, &serr) && serr.Code == protocol.CodeInsufficientBalance {
			b.logger.Info("Out of funds", "rounds", res.Rounds)
			break
		}
		if err != nil {
			return res, fmt.Errorf("start round: %w", err)
		}
		res.Balance = balance
		res.Staked = res.Staked.Add(b.cfg.Stake)
		res.Rounds++

		round, err := b.playRound(ctx)
		if err != nil {
			return res, err
		}
		if round.CashedOut {
			res.Wins++
			res.Returned = res.Returned.Add(round.Payout)
		} else {
			res.Losses++
		}
		res.Balance = round.Balance

		b.logger.Debug("Round finished",
			"round", round.RoundID,
			"crashPoint", round.CrashPoint,
			"cashedOut", round.CashedOut,
			"balance", round.Balance.StringFixed(2),
		)
	}
	return res, nil
}

// playRound follows events until the round crashes and returns the final
// round state.
func (b *Bot) playRound(ctx context.Context) (protocol.Round, error) {
	requested := false
	for {
		select {
		case <-ctx.Done():
			return protocol.Round{}, ctx.Err()
		case msg, ok := <-b.client.Events():
			if !ok {
				return protocol.Round{}, ErrClosed
			}

			switch msg.Type {
			case protocol.TypeMultiplier:
				var r protocol.Round
				if err := msg.Decode(&r); err != nil {
					return protocol.Round{}, err
				}
				if requested || r.CashedOut || r.Multiplier < b.cfg.Target {
					continue
				}
				requested = true
				if _, err := b.client.CashOut(ctx); err != nil {
					var serr *ServerError
					if !errors.As(err, &serr) {
						return protocol.Round{}, fmt.Errorf("cash out: %w", err)
					}
					b.logger.Debug("Cash out rejected", "code", serr.Code)
				}

			case protocol.TypeRoundCrashed:
				var r protocol.Round
				if err := msg.Decode(&r); err != nil {
					return protocol.Round{}, err
				}
				return r, nil
			}
		}
	}
}
