// Package sportsbook is the sports side of the app: a static match catalog,
// the bet slip and placing the slip against the wallet.
package sportsbook

import (
	"context"
	"sync"
	"time"
)

// Selection is the outcome a bet backs.
type Selection string

const (
	Home Selection = "home"
	Draw Selection = "draw"
	Away Selection = "away"
)

// ParseSelection accepts home, draw or away.
func ParseSelection(s string) (Selection, bool) {
	switch Selection(s) {
	case Home, Draw, Away:
		return Selection(s), true
	}
	return "", false
}

// MatchStatus is where a match is in its schedule.
type MatchStatus string

const (
	StatusUpcoming MatchStatus = "upcoming"
	StatusLive     MatchStatus = "live"
	StatusEnded    MatchStatus = "ended"
)

// Odds are decimal odds per outcome. Draw is zero for markets without one.
type Odds struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw,omitempty"`
	Away float64 `json:"away"`
}

// Score is the live or final score.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Match is one fixture in the catalog.
type Match struct {
	ID        string      `json:"id"`
	Sport     string      `json:"sport"`
	League    string      `json:"league"`
	HomeTeam  string      `json:"homeTeam"`
	AwayTeam  string      `json:"awayTeam"`
	StartTime time.Time   `json:"startTime"`
	Status    MatchStatus `json:"status"`
	Odds      Odds        `json:"odds"`
	Score     *Score      `json:"score,omitempty"`
}

// OddsFor returns the odds for sel, false when the market has no such outcome.
func (m Match) OddsFor(sel Selection) (float64, bool) {
	var o float64
	switch sel {
	case Home:
		o = m.Odds.Home
	case Draw:
		o = m.Odds.Draw
	case Away:
		o = m.Odds.Away
	}
	return o, o > 0
}

// Catalog lists matches available for betting.
type Catalog interface {
	Matches() []Match
	Match(id string) (Match, bool)
}

// Analyst produces a short natural-language preview of a match.
type Analyst interface {
	AnalyzeMatch(ctx context.Context, m Match) (string, error)
}

// StaticCatalog is an in-memory catalog.
type StaticCatalog struct {
	mu      sync.RWMutex
	matches []Match
	byID    map[string]int
}

// NewStaticCatalog builds a catalog over matches.
func NewStaticCatalog(matches []Match) *StaticCatalog {
	c := &StaticCatalog{
		matches: append([]Match(nil), matches...),
		byID:    make(map[string]int, len(matches)),
	}
	for i, m := range c.matches {
		c.byID[m.ID] = i
	}
	return c
}

func (c *StaticCatalog) Matches() []Match {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Match(nil), c.matches...)
}

func (c *StaticCatalog) Match(id string) (Match, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return Match{}, false
	}
	return c.matches[i], true
}

// DemoMatches is the demo fixture list, with start times relative to now.
func DemoMatches(now time.Time) []Match {
	return []Match{
		{
			ID: "m1", Sport: "Soccer", League: "Premier League",
			HomeTeam: "Arsenal", AwayTeam: "Liverpool",
			StartTime: now.Add(time.Hour), Status: StatusUpcoming,
			Odds: Odds{Home: 2.45, Draw: 3.40, Away: 2.80},
		},
		{
			ID: "m2", Sport: "Soccer", League: "La Liga",
			HomeTeam: "Real Madrid", AwayTeam: "Barcelona",
			StartTime: now.Add(-30 * time.Minute), Status: StatusLive,
			Odds:  Odds{Home: 3.10, Draw: 2.90, Away: 2.50},
			Score: &Score{Home: 1, Away: 1},
		},
		{
			ID: "m3", Sport: "Basketball", League: "NBA",
			HomeTeam: "Lakers", AwayTeam: "Warriors",
			StartTime: now.Add(2 * time.Hour), Status: StatusUpcoming,
			Odds: Odds{Home: 1.85, Away: 1.95},
		},
		{
			ID: "m4", Sport: "Tennis", League: "Wimbledon",
			HomeTeam: "Alcaraz", AwayTeam: "Djokovic",
			StartTime: now, Status: StatusLive,
			Odds:  Odds{Home: 1.50, Away: 2.60},
			Score: &Score{Home: 2, Away: 1},
		},
		{
			ID: "m5", Sport: "Esports", League: "LCK Summer",
			HomeTeam: "T1", AwayTeam: "Gen.G",
			StartTime: now.Add(24 * time.Hour), Status: StatusUpcoming,
			Odds: Odds{Home: 2.10, Away: 1.70},
		},
	}
}
