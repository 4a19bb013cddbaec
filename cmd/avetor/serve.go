package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/avetor/internal/randutil"
	"github.com/lox/avetor/internal/server"
	"github.com/lox/avetor/internal/session"
)

// ServeCmd runs the websocket server.
type ServeCmd struct {
	Addr string `short:"a" help:"Address to bind to, host:port (overrides config)"`
	Seed *int64 `help:"Deterministic crash point seed (overrides config)"`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		if err := cfg.SetAddr(c.Addr); err != nil {
			return err
		}
	}
	if c.Seed != nil {
		cfg.Game.Seed = *c.Seed
	}

	logger := newLogger(os.Stderr, cfg.Level())
	seed := randutil.Seed(cfg.Game.Seed, time.Now())

	srv := server.NewServer(server.Config{
		Addr:    cfg.Addr(),
		Session: sessionConfig(cfg, session.DefaultUsername),
		Seed:    seed,
	}, logger)

	logger.Info("Starting Avetor server",
		"addr", cfg.Addr(),
		"seed", seed,
		"tick", cfg.TickInterval(),
		"initial_balance", cfg.InitialBalance().StringFixed(2),
		"max_stake", cfg.MaxStake().StringFixed(2))

	ctx, stop := signalContext()
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(srv.ListenAndServe)
	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
