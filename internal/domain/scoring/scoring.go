// Package scoring turns raw match statistics into player and squad points.
//
// Everything here is pure and deterministic: the same stats and squad always
// produce the same score, which is what lets independent parties rebuild a
// period's commitment and compare roots.
package scoring

import (
	"github.com/okian/matchday/internal/domain/model"
)

// PositionWeights holds the per-position multipliers.
type PositionWeights struct {
	Goalkeeper int64 `koanf:"goalkeeper"`
	Defender   int64 `koanf:"defender"`
	Midfielder int64 `koanf:"midfielder"`
	Forward    int64 `koanf:"forward"`
}

func (w PositionWeights) of(p model.Position) int64 {
	switch p {
	case model.Goalkeeper:
		return w.Goalkeeper
	case model.Defender:
		return w.Defender
	case model.Midfielder:
		return w.Midfielder
	case model.Forward:
		return w.Forward
	}
	return 0
}

// Rules is the points table.
type Rules struct {
	Goal         PositionWeights `koanf:"goal"`
	CleanSheet   PositionWeights `koanf:"clean_sheet"`
	PenaltySave  PositionWeights `koanf:"penalty_save"`
	Assist       int64           `koanf:"assist"`
	PenaltyMiss  int64           `koanf:"penalty_miss"`
	YellowCard   int64           `koanf:"yellow_card"`
	RedCard      int64           `koanf:"red_card"`
	OwnGoal      int64           `koanf:"own_goal"`
	CaptainBonus int64           `koanf:"captain_multiplier"`
}

// DefaultRules returns the standard points table.
func DefaultRules() Rules {
	return Rules{
		Goal:         PositionWeights{Goalkeeper: 6, Defender: 6, Midfielder: 5, Forward: 4},
		CleanSheet:   PositionWeights{Goalkeeper: 4, Defender: 4, Midfielder: 1},
		PenaltySave:  PositionWeights{Goalkeeper: 5},
		Assist:       3,
		PenaltyMiss:  2,
		YellowCard:   1,
		RedCard:      3,
		OwnGoal:      2,
		CaptainBonus: 2,
	}
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRules replaces the points table.
func WithRules(r Rules) Option {
	return func(e *Engine) {
		if r.CaptainBonus < 1 {
			r.CaptainBonus = 1
		}
		e.rules = r
	}
}

// Engine scores players and squads.
type Engine struct {
	rules Rules
}

// NewEngine creates an engine with the default rules unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{rules: DefaultRules()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the active points table.
func (e *Engine) Rules() Rules {
	return e.rules
}

// Score returns the points for one player's stats. Players who did not play
// score zero. Deductions may outweigh additions; the total is clamped at
// zero once, after every term is applied.
func (e *Engine) Score(stats model.MatchStats, pos model.Position) int64 {
	if !stats.Played || !pos.Valid() {
		return 0
	}
	r := e.rules
	pts := int64(stats.Goals)*r.Goal.of(pos) +
		int64(stats.CleanSheets)*r.CleanSheet.of(pos) +
		int64(stats.PenaltySaves)*r.PenaltySave.of(pos) +
		int64(stats.Assists)*r.Assist -
		int64(stats.PenaltyMisses)*r.PenaltyMiss -
		int64(stats.YellowCards)*r.YellowCard -
		int64(stats.RedCards)*r.RedCard -
		int64(stats.OwnGoals)*r.OwnGoal
	if pts < 0 {
		return 0
	}
	return pts
}

// SquadScore sums the squad's player scores. The captain's score is
// multiplied when the captain played; otherwise the vice-captain's score is
// multiplied when the vice played. At most one player is multiplied.
// Players without stats contribute nothing.
func (e *Engine) SquadScore(sq *model.Squad, stats map[model.PlayerID]model.MatchStats) int64 {
	if sq == nil {
		return 0
	}
	doubled := model.PlayerID(0)
	if st, ok := stats[sq.Captain]; ok && sq.Captain != 0 && st.Played {
		doubled = sq.Captain
	} else if st, ok := stats[sq.ViceCaptain]; ok && sq.ViceCaptain != 0 && st.Played {
		doubled = sq.ViceCaptain
	}

	var total int64
	for _, sl := range sq.Slots {
		st, ok := stats[sl.PlayerID]
		if !ok || !st.Played {
			continue
		}
		pts := e.Score(st, sl.Position)
		if sl.PlayerID == doubled {
			pts *= e.rules.CaptainBonus
		}
		total += pts
	}
	return total
}
