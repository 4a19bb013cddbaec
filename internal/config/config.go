// Package config loads avetor.hcl.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/shopspring/decimal"
)

// Config is the complete configuration.
type Config struct {
	Server ServerSettings
	Game   GameSettings
}

// ServerSettings configures the websocket server and logging.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// GameSettings configures each player session.
type GameSettings struct {
	InitialBalance float64 `hcl:"initial_balance,optional"`
	TickInterval   string  `hcl:"tick_interval,optional"`
	RecentLimit    int     `hcl:"recent_limit,optional"`
	MaxStake       float64 `hcl:"max_stake,optional"`
	Seed           int64   `hcl:"seed,optional"`
}

// file mirrors Config with optional blocks.
type file struct {
	Server *ServerSettings `hcl:"server,block"`
	Game   *GameSettings   `hcl:"game,block"`
}

const (
	DefaultAddress        = "localhost"
	DefaultPort           = 8080
	DefaultLogLevel       = "info"
	DefaultInitialBalance = 1000.00
	DefaultTickInterval   = "50ms"
	DefaultRecentLimit    = 8
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads filename. A missing file yields Default().
func Load(filename string) (*Config, error) {
	src, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(src, filename)
}

// Parse decodes HCL source and applies defaults for anything left unset.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw file
	diags = gohcl.DecodeBody(f.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	c := &Config{}
	if raw.Server != nil {
		c.Server = *raw.Server
	}
	if raw.Game != nil {
		c.Game = *raw.Game
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = DefaultLogLevel
	}
	if c.Game.InitialBalance == 0 {
		c.Game.InitialBalance = DefaultInitialBalance
	}
	if c.Game.TickInterval == "" {
		c.Game.TickInterval = DefaultTickInterval
	}
	if c.Game.RecentLimit == 0 {
		c.Game.RecentLimit = DefaultRecentLimit
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.Server.LogLevel)
	}
	if c.Game.InitialBalance < 0 {
		return fmt.Errorf("initial balance must not be negative")
	}
	d, err := time.ParseDuration(c.Game.TickInterval)
	if err != nil {
		return fmt.Errorf("invalid tick interval %q: %w", c.Game.TickInterval, err)
	}
	if d < time.Millisecond || d > time.Second {
		return fmt.Errorf("tick interval must be between 1ms and 1s, got %s", d)
	}
	if c.Game.MaxStake < 0 {
		return fmt.Errorf("max stake must not be negative")
	}
	if c.Game.RecentLimit < 1 {
		return fmt.Errorf("recent limit must be positive")
	}
	return nil
}

// Addr returns host:port for the server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// SetAddr overrides address and port from a host:port string.
func (c *Config) SetAddr(addr string) error {
	host, port, ok := strings.Cut(addr, ":")
	if !ok {
		return fmt.Errorf("address %q must be host:port", addr)
	}
	var p int
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
		return fmt.Errorf("address %q has invalid port", addr)
	}
	c.Server.Address = host
	c.Server.Port = p
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.Server.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// TickInterval returns the parsed tick interval. Call Validate first.
func (c *Config) TickInterval() time.Duration {
	d, err := time.ParseDuration(c.Game.TickInterval)
	if err != nil {
		d, _ = time.ParseDuration(DefaultTickInterval)
	}
	return d
}

// MaxStake returns the per-round stake limit; zero means unlimited.
func (c *Config) MaxStake() decimal.Decimal {
	return decimal.NewFromFloat(c.Game.MaxStake).Round(2)
}

// InitialBalance returns the starting balance as money.
func (c *Config) InitialBalance() decimal.Decimal {
	return decimal.NewFromFloat(c.Game.InitialBalance).Round(2)
}
