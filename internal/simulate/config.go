package simulate

import (
	"time"

	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/pkg/logger"
)

// Config holds configuration for a simulated season.
type Config struct {
	BaseURL       string        // Base URL of the service
	Squads        int           // Number of squads to register
	Periods       int           // Number of periods to play and settle
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	SettleTimeout time.Duration // How long to wait for an oracle question to finalize
	PollInterval  time.Duration // Delay between settlement attempts while pending
	Answerer      string        // Name posted with oracle answers
	Seed          uint64        // Seed for owners and squad selection
	Verbose       bool          // Log each squad and period step
	Logger        logger.Logger
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Workers < 1 {
		out.Workers = 1
	}
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Second
	}
	if out.SettleTimeout <= 0 {
		out.SettleTimeout = time.Minute
	}
	if out.PollInterval <= 0 {
		out.PollInterval = time.Second
	}
	if out.Answerer == "" {
		out.Answerer = "simulator"
	}
	if out.Logger == nil {
		out.Logger = logger.OrNop()
	}
	return out
}

// Player is a registry entry as served by GET /players.
type Player struct {
	ID       model.PlayerID `json:"id"`
	Name     string         `json:"name"`
	Position model.Position `json:"position"`
	TeamID   model.TeamID   `json:"team_id"`
	Price    int64          `json:"price"`
}

// Entry represents a standings row.
type Entry struct {
	Rank   int         `json:"rank"`
	Owner  model.Owner `json:"owner"`
	Points int64       `json:"points"`
}

// Commitment is a period's published commitment.
type Commitment struct {
	Period uint64            `json:"period"`
	Root   merkle.Hash       `json:"root"`
	Count  int               `json:"count"`
	Leaves []model.ScoreLeaf `json:"leaves"`
}

// ProofResponse carries one owner's inclusion proof.
type ProofResponse struct {
	Leaf  model.ScoreLeaf `json:"leaf"`
	Proof merkle.Proof    `json:"proof"`
}

// Question is an oracle question as listed by the service.
type Question struct {
	ID      string `json:"id"`
	Period  uint64 `json:"period"`
	MinBond uint64 `json:"min_bond"`
	State   string `json:"state"`
}

// Outcome is a settlement response.
type Outcome struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// Stats holds simulation statistics.
type Stats struct {
	SquadsCreated    int
	SquadsFailed     int
	PeriodsCommitted int
	PeriodsSettled   int
	LeavesApplied    int
	LeavesSkipped    int
	PendingRetries   int
	StandingsChecked int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
