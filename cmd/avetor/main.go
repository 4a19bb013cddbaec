package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/lox/avetor/internal/config"
	"github.com/lox/avetor/internal/session"
)

// version is set by ldflags during build
var version = "dev"

// Globals are flags shared by every command.
type Globals struct {
	Config   string `short:"c" default:"avetor.hcl" help:"Path to HCL configuration file"`
	LogLevel string `short:"l" help:"Log level (debug|info|warn|error), overrides config"`
}

type CLI struct {
	Globals

	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Serve    ServeCmd         `cmd:"" help:"Run the websocket game server"`
	Play     PlayCmd          `cmd:"" help:"Play in the terminal against an in-process session"`
	Bot      BotCmd           `cmd:"" help:"Connect to a server and play rounds with an auto cash-out target"`
	Simulate SimulateCmd      `cmd:"" help:"Estimate the return of an auto cash-out strategy"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("avetor"),
		kong.Description("Crash game server, terminal client and strategy simulator"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

// loadConfig reads the config file and applies global overrides.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.Server.LogLevel = g.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
}

func sessionConfig(cfg *config.Config, username string) session.Config {
	return session.Config{
		Username:       username,
		InitialBalance: cfg.InitialBalance(),
		TickInterval:   cfg.TickInterval(),
		RecentLimit:    cfg.Game.RecentLimit,
		MaxStake:       cfg.MaxStake(),
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
