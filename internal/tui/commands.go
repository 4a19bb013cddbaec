package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lox/avetor/internal/sportsbook"
)

type commandKind int

const (
	cmdNone commandKind = iota
	cmdBet
	cmdCashOut
	cmdSlipAdd
	cmdSlipRemove
	cmdSlipShow
	cmdSlipPlace
	cmdSlipClear
	cmdMatches
	cmdHistory
	cmdHelp
	cmdQuit
)

type command struct {
	kind      commandKind
	stake     decimal.Decimal
	matchID   string
	selection sportsbook.Selection
	itemID    string
}

var errUsage = errors.New("unknown command, type 'help'")

const helpText = `bet <amount>                         start a round
cash                                 cash out of the running round
slip add <match> <home|draw|away> <stake>
slip remove <match>:<selection>
slip | slip place | slip clear
matches | history | quit`

func parseCommand(input string) (command, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(input)))
	if len(fields) == 0 {
		return command{kind: cmdNone}, nil
	}

	switch fields[0] {
	case "bet", "b":
		if len(fields) != 2 {
			return command{}, fmt.Errorf("usage: bet <amount>")
		}
		stake, err := parseStake(fields[1])
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdBet, stake: stake}, nil

	case "cash", "c", "cashout":
		return command{kind: cmdCashOut}, nil

	case "slip", "s":
		return parseSlip(fields[1:])

	case "matches", "m":
		return command{kind: cmdMatches}, nil

	case "history", "h":
		return command{kind: cmdHistory}, nil

	case "help", "?":
		return command{kind: cmdHelp}, nil

	case "quit", "q", "exit":
		return command{kind: cmdQuit}, nil
	}
	return command{}, errUsage
}

func parseSlip(args []string) (command, error) {
	if len(args) == 0 {
		return command{kind: cmdSlipShow}, nil
	}

	switch args[0] {
	case "add":
		if len(args) != 4 {
			return command{}, fmt.Errorf("usage: slip add <match> <home|draw|away> <stake>")
		}
		sel, ok := sportsbook.ParseSelection(args[2])
		if !ok {
			return command{}, fmt.Errorf("selection must be home, draw or away")
		}
		stake, err := parseStake(args[3])
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdSlipAdd, matchID: args[1], selection: sel, stake: stake}, nil

	case "remove", "rm":
		if len(args) != 2 {
			return command{}, fmt.Errorf("usage: slip remove <match>:<selection>")
		}
		return command{kind: cmdSlipRemove, itemID: args[1]}, nil

	case "place":
		return command{kind: cmdSlipPlace}, nil

	case "clear":
		return command{kind: cmdSlipClear}, nil
	}
	return command{}, errUsage
}

func parseStake(s string) (decimal.Decimal, error) {
	stake, err := decimal.NewFromString(strings.TrimPrefix(s, "$"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return stake, nil
}
