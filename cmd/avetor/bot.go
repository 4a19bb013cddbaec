package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lox/avetor/internal/client"
)

// BotCmd plays rounds against a running server.
type BotCmd struct {
	Server   string  `default:"ws://localhost:8080/ws" help:"WebSocket server URL"`
	Username string  `short:"u" default:"bot" help:"Login name"`
	Rounds   int     `short:"n" default:"100" help:"Rounds to play"`
	Stake    float64 `default:"10" help:"Stake per round"`
	Target   float64 `short:"t" default:"2.0" help:"Cash out at this multiplier"`
}

func (c *BotCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Level())

	ctx, stop := signalContext()
	defer stop()

	cl, err := client.Dial(ctx, c.Server, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = cl.Close()
	}()

	login, err := cl.Login(ctx, c.Username)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	logger.Info("Logged in", "session", login.SessionID, "balance", login.Balance.StringFixed(2))

	bot, err := client.NewBot(cl, client.BotConfig{
		Rounds: c.Rounds,
		Stake:  decimal.NewFromFloat(c.Stake).Round(2),
		Target: c.Target,
	}, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := bot.Run(ctx)
	if err != nil && !errors.Is(err, ctx.Err()) {
		return err
	}

	fmt.Printf("Rounds:   %d (%d won, %d lost) in %s\n", result.Rounds, result.Wins, result.Losses, time.Since(start).Round(time.Millisecond))
	fmt.Printf("Staked:   %s\n", result.Staked.StringFixed(2))
	fmt.Printf("Returned: %s (RTP %.2f%%)\n", result.Returned.StringFixed(2), result.RTP()*100)
	fmt.Printf("Balance:  %s\n", result.Balance.StringFixed(2))
	return nil
}
