package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/lox/avetor/internal/randutil"
	"github.com/lox/avetor/internal/simulator"
)

var titleStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	Padding(0, 1).
	Bold(true)

// SimulateCmd runs offline rounds through the engine.
type SimulateCmd struct {
	Rounds  int     `short:"n" default:"100000" help:"Rounds to simulate"`
	Workers int     `short:"w" help:"Parallel workers (default GOMAXPROCS)"`
	Stake   float64 `default:"10" help:"Stake per round"`
	Target  float64 `short:"t" default:"2.0" help:"Auto cash-out multiplier"`
	Seed    *int64  `help:"Deterministic seed (overrides config)"`
}

func (c *SimulateCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if c.Seed != nil {
		cfg.Game.Seed = *c.Seed
	}
	logger := newLogger(os.Stderr, cfg.Level())

	simCfg := simulator.Config{
		Rounds:  c.Rounds,
		Workers: c.Workers,
		Stake:   decimal.NewFromFloat(c.Stake).Round(2),
		Target:  c.Target,
		Seed:    randutil.Seed(cfg.Game.Seed, time.Now()),
		Logger:  logger,
	}
	sim, err := simulator.New(simCfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	start := time.Now()
	stats, err := sim.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(" Avetor strategy simulation "))
	fmt.Println()
	fmt.Print(simulator.FormatReport(simCfg, stats, time.Since(start)))
	return nil
}
