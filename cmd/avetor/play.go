package main

import (
	"fmt"
	"os"
	"time"

	"github.com/lox/avetor/internal/crash"
	"github.com/lox/avetor/internal/randutil"
	"github.com/lox/avetor/internal/session"
	"github.com/lox/avetor/internal/tui"
)

// PlayCmd runs the terminal UI over an in-process session.
type PlayCmd struct {
	Username    string `short:"u" default:"DemoUser" help:"Display name"`
	Seed        *int64 `help:"Deterministic crash point seed (overrides config)"`
	HistoryFile string `help:"Write the round history to this JSON file on exit"`
	LogFile     string `default:"avetor-play.log" help:"Debug log file (the terminal is taken by the UI)"`
}

func (c *PlayCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if c.Seed != nil {
		cfg.Game.Seed = *c.Seed
	}

	logFile, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer func() {
		_ = logFile.Close()
	}()
	logger := newLogger(logFile, cfg.Level())

	seed := randutil.Seed(cfg.Game.Seed, time.Now())
	logger.Info("Starting terminal session", "user", c.Username, "seed", seed)

	sess, err := session.New(sessionConfig(cfg, c.Username), logger,
		session.WithGenerator(crash.NewRandomGenerator(randutil.New(seed))))
	if err != nil {
		return err
	}
	defer func() {
		_ = sess.Close()
	}()

	ctx, stop := signalContext()
	defer stop()

	if err := tui.Run(ctx, sess, logger); err != nil {
		return err
	}
	if err := sess.Close(); err != nil {
		return err
	}

	if c.HistoryFile != "" {
		if err := sess.ExportHistory(c.HistoryFile); err != nil {
			return fmt.Errorf("export history: %w", err)
		}
		fmt.Printf("History written to %s\n", c.HistoryFile)
	}
	fmt.Printf("Final balance: %s (%d rounds)\n", sess.Balance().StringFixed(2), len(sess.History()))
	return nil
}
