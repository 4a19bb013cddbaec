package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/lox/avetor/internal/crash"
	"github.com/lox/avetor/internal/history"
	"github.com/lox/avetor/internal/sportsbook"
)

// Game is the player session the UI drives.
type Game interface {
	Username() string
	StartRound(stake decimal.Decimal) (crash.Snapshot, error)
	CashOut() (crash.CashOutResult, error)
	Round() crash.Snapshot
	Balance() decimal.Decimal
	RecentCrashPoints() []float64
	History() []history.Entry
	Matches() []sportsbook.Match
	Slip() []sportsbook.SlipItem
	AddToSlip(matchID string, sel sportsbook.Selection, stake decimal.Decimal) (sportsbook.SlipItem, error)
	RemoveFromSlip(id string) error
	ClearSlip()
	PlaceSportsBets() ([]history.Entry, error)
	Subscribe(crash.Subscriber) func()
}

// roundEventMsg carries an engine event into the update loop.
type roundEventMsg crash.Event

// resultMsg is the outcome of a command run off the update loop.
type resultMsg struct {
	lines []string
	err   error
}

// Model is the Bubble Tea model for a crash session.
type Model struct {
	game   Game
	logger *log.Logger

	logViewport viewport.Model
	input       textinput.Model

	gameLog  []string
	round    crash.Snapshot
	balance  decimal.Decimal
	recent   []float64
	quitting bool

	width  int
	height int
}

// NewModel creates a model for game.
func NewModel(game Game, logger *log.Logger) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "bet 10, cash, slip add m1 home 5, help"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 60
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "> "

	m := &Model{
		game:        game,
		logger:      logger.WithPrefix("tui"),
		logViewport: vp,
		input:       ti,
		round:       game.Round(),
		balance:     game.Balance(),
		recent:      game.RecentCrashPoints(),
	}
	m.AddLogEntry(fmt.Sprintf("Welcome %s. Type 'help' for commands.", game.Username()))
	return m
}

// Init initializes the TUI model
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "pgup":
			m.logViewport.HalfPageUp()
			return m, nil
		case "pgdown":
			m.logViewport.HalfPageDown()
			return m, nil
		case "enter":
			line := m.input.Value()
			m.input.SetValue("")
			cmd, quit := m.submit(line)
			if quit {
				m.quitting = true
				return m, tea.Quit
			}
			return m, cmd
		}

	case roundEventMsg:
		m.applyEvent(crash.Event(msg))
		return m, nil

	case resultMsg:
		for _, line := range msg.lines {
			m.AddLogEntry(line)
		}
		if msg.err != nil {
			m.AddLogEntry(ErrorStyle.Render("Error: " + msg.err.Error()))
		}
		m.balance = m.game.Balance()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit parses a command line. Session calls run in the returned command,
// never on the update loop, since engine events are delivered back into it.
func (m *Model) submit(line string) (tea.Cmd, bool) {
	c, err := parseCommand(line)
	if err != nil {
		m.AddLogEntry(ErrorStyle.Render(err.Error()))
		return nil, false
	}

	switch c.kind {
	case cmdNone:
		return nil, false
	case cmdQuit:
		return nil, true
	case cmdHelp:
		for _, l := range strings.Split(helpText, "\n") {
			m.AddLogEntry(InfoStyle.Render(l))
		}
		return nil, false
	}

	m.logger.Debug("Running command", "input", line)
	return func() tea.Msg { return m.run(c) }, false
}

func (m *Model) run(c command) resultMsg {
	switch c.kind {
	case cmdBet:
		snap, err := m.game.StartRound(c.stake)
		if err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{lines: []string{fmt.Sprintf("Bet %s placed on round %s", snap.Stake.StringFixed(2), shortID(snap.RoundID))}}

	case cmdCashOut:
		res, err := m.game.CashOut()
		if err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{lines: []string{SuccessStyle.Render(fmt.Sprintf("Cashed out @ %.2fx for %s", res.Multiplier, res.Payout.StringFixed(2)))}}

	case cmdSlipAdd:
		item, err := m.game.AddToSlip(c.matchID, c.selection, c.stake)
		if err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{lines: []string{fmt.Sprintf("Slip: %s %s @ %.2f stake %s", item.MatchID, item.Selection, item.Odds, item.Stake.StringFixed(2))}}

	case cmdSlipRemove:
		return resultMsg{err: m.game.RemoveFromSlip(c.itemID), lines: slipLines(m.game.Slip())}

	case cmdSlipShow:
		return resultMsg{lines: slipLines(m.game.Slip())}

	case cmdSlipClear:
		m.game.ClearSlip()
		return resultMsg{lines: []string{"Slip cleared"}}

	case cmdSlipPlace:
		entries, err := m.game.PlaceSportsBets()
		if err != nil {
			return resultMsg{err: err}
		}
		lines := make([]string, 0, len(entries))
		for _, e := range entries {
			lines = append(lines, SuccessStyle.Render(fmt.Sprintf("Bet placed: %s @ %.2f stake %s", e.Detail, e.Multiplier, e.Stake.StringFixed(2))))
		}
		return resultMsg{lines: lines}

	case cmdMatches:
		var lines []string
		for _, mt := range m.game.Matches() {
			odds := fmt.Sprintf("home %.2f away %.2f", mt.Odds.Home, mt.Odds.Away)
			if mt.Odds.Draw > 0 {
				odds = fmt.Sprintf("home %.2f draw %.2f away %.2f", mt.Odds.Home, mt.Odds.Draw, mt.Odds.Away)
			}
			lines = append(lines, fmt.Sprintf("%s  %s vs %s (%s, %s)  %s", mt.ID, mt.HomeTeam, mt.AwayTeam, mt.League, mt.Status, odds))
		}
		return resultMsg{lines: lines}

	case cmdHistory:
		entries := m.game.History()
		if len(entries) == 0 {
			return resultMsg{lines: []string{"No history yet"}}
		}
		lines := make([]string, 0, len(entries))
		for _, e := range entries {
			lines = append(lines, fmt.Sprintf("%-7s %-30s stake %s payout %s", e.Status, e.Detail, e.Stake.StringFixed(2), e.Payout.StringFixed(2)))
		}
		return resultMsg{lines: lines}
	}
	return resultMsg{}
}

func (m *Model) applyEvent(ev crash.Event) {
	m.round = ev.Round
	m.balance = m.game.Balance()

	switch ev.Type {
	case crash.EventRoundCrashed:
		m.recent = m.game.RecentCrashPoints()
		if ev.Round.CashedOut {
			m.AddLogEntry(fmt.Sprintf("Crashed @ %.2fx (you won %s)", ev.Round.CrashPoint, ev.Round.Payout.StringFixed(2)))
		} else {
			m.AddLogEntry(ErrorStyle.Render(fmt.Sprintf("Crashed @ %.2fx, lost %s", ev.Round.CrashPoint, ev.Round.Stake.StringFixed(2))))
		}
	case crash.EventRoundStarted:
		m.AddLogEntry(InfoStyle.Render("Round started"))
	}
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := HeaderStyle.Render("AVETOR CRASH") + "  " +
		BalanceStyle.Render("Balance: "+m.balance.StringFixed(2)) + "  " +
		InfoStyle.Render(m.game.Username())

	status := lipgloss.JoinVertical(lipgloss.Left,
		m.renderMultiplier(),
		m.renderRoundInfo(),
		m.renderRecent(),
	)

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262"))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		status,
		logStyle.Render(m.logViewport.View()),
		m.input.View(),
		InfoStyle.Render("Enter to submit • PgUp/PgDn scroll • Ctrl+C to quit"),
	)
}

func (m *Model) renderMultiplier() string {
	text := fmt.Sprintf("%.2fx", m.round.Multiplier)
	switch {
	case m.round.State == crash.StateCrashed:
		return CrashedStyle.Render("CRASHED @ " + fmt.Sprintf("%.2fx", m.round.CrashPoint))
	case m.round.CashedOut:
		return CashedOutStyle.Render(text + fmt.Sprintf("  (cashed out @ %.2fx)", m.round.CashOut))
	default:
		return MultiplierStyle.Render(text)
	}
}

func (m *Model) renderRoundInfo() string {
	if m.round.RoundID == "" {
		return InfoStyle.Render("No round yet. Place a bet to start.")
	}
	info := fmt.Sprintf("Round %s  %s  stake %s", shortID(m.round.RoundID), m.round.State, m.round.Stake.StringFixed(2))
	if m.round.State == crash.StateRunning && !m.round.CashedOut {
		potential := m.round.Stake.Mul(decimal.NewFromFloat(m.round.Multiplier)).Round(2)
		info += "  cash out now for " + potential.StringFixed(2)
	}
	return WarningStyle.Render(info)
}

func (m *Model) renderRecent() string {
	if len(m.recent) == 0 {
		return InfoStyle.Render("Recent: -")
	}
	parts := make([]string, len(m.recent))
	for i, cp := range m.recent {
		parts[i] = crashPointStyle(cp).Render(fmt.Sprintf("%.2fx", cp))
	}
	return InfoStyle.Render("Recent: ") + strings.Join(parts, " ")
}

func (m *Model) resize() {
	const chrome = 12
	w := m.width - 2
	h := m.height - chrome
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	m.logViewport.Width = w
	m.logViewport.Height = h
	m.input.Width = w - 4
	m.logViewport.GotoBottom()
}

// AddLogEntry appends a line to the log and scrolls to it.
func (m *Model) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, GameLogStyle.Render(entry))
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}

func slipLines(items []sportsbook.SlipItem) []string {
	if len(items) == 0 {
		return []string{"Slip is empty"}
	}
	lines := make([]string, 0, len(items)+1)
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Stake)
		lines = append(lines, fmt.Sprintf("  %s  %s vs %s  %s @ %.2f  stake %s",
			it.ID, it.Match.HomeTeam, it.Match.AwayTeam, it.Selection, it.Odds, it.Stake.StringFixed(2)))
	}
	lines = append(lines, "  total "+total.StringFixed(2))
	return lines
}

// Run starts the terminal UI over game and blocks until the user quits or
// ctx is cancelled. Engine events reach the model through Program.Send.
func Run(ctx context.Context, game Game, logger *log.Logger, opts ...tea.ProgramOption) error {
	model := NewModel(game, logger)
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(model, opts...)

	unsubscribe := game.Subscribe(crash.SubscriberFunc(func(ev crash.Event) {
		p.Send(roundEventMsg(ev))
	}))
	defer unsubscribe()

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
