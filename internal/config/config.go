// Package config defines service configuration and its defaults.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/matchday/internal/domain/oracle"
	"github.com/okian/matchday/internal/domain/roster"
	"github.com/okian/matchday/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the async settlement submission queue.
	QueueSize int `koanf:"queue_size"`

	// MaxStandingsLimit caps GET /standings?limit.
	MaxStandingsLimit int `koanf:"max_standings_limit"`

	// SnapshotInterval is how often the standings snapshot is republished.
	SnapshotInterval time.Duration `koanf:"snapshot_interval"`

	Roster     roster.Limits `koanf:"roster"`
	Oracle     oracle.Params `koanf:"oracle"`
	Scoring    scoring.Rules `koanf:"scoring"`
	Commitment Commitment    `koanf:"commitment"`
	Storage    Storage       `koanf:"storage"`
	Schedule   Schedule      `koanf:"schedule"`
	Registry   Registry      `koanf:"registry"`
}

// Commitment tunes Merkle tree building. Zero keeps the built-in defaults.
type Commitment struct {
	Workers           int `koanf:"workers"`
	ParallelThreshold int `koanf:"parallel_threshold"`
}

// Storage selects where settlement records live.
type Storage struct {
	// SQLitePath is the database file. Empty keeps records in memory.
	SQLitePath string `koanf:"sqlite_path"`
}

// Schedule drives the period lifecycle from cron expressions.
type Schedule struct {
	Enabled   bool   `koanf:"enabled"`
	StartCron string `koanf:"start_cron"`
	EndCron   string `koanf:"end_cron"`
	Timezone  string `koanf:"timezone"`
}

// Registry points at the YAML data files.
type Registry struct {
	PlayersFile string `koanf:"players_file"`
	StatsFile   string `koanf:"stats_file"`
}

// New returns a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		QueueSize:         1024,
		MaxStandingsLimit: 100,
		SnapshotInterval:  time.Second,
		Roster:            roster.DefaultLimits(),
		Oracle: oracle.Params{
			Arbitrator: "0x0000000000000000000000000000000000000000",
			Timeout:    24 * time.Hour,
			MinBond:    1,
			Template:   oracle.DefaultTemplate,
		},
		Scoring: scoring.DefaultRules(),
		Schedule: Schedule{
			StartCron: "0 12 * * 5",
			EndCron:   "0 23 * * 1",
			Timezone:  "UTC",
		},
	}
}

// Validate checks values that would otherwise fail deep inside wiring.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.MaxStandingsLimit < 1:
		return fmt.Errorf("%w: max_standings_limit must be positive", ErrInvalidConfig)
	case c.SnapshotInterval <= 0:
		return fmt.Errorf("%w: snapshot_interval must be positive", ErrInvalidConfig)
	case c.Oracle.Timeout <= 0:
		return fmt.Errorf("%w: oracle.timeout must be positive", ErrInvalidConfig)
	case c.Oracle.MinBond < 1:
		return fmt.Errorf("%w: oracle.min_bond must be at least 1", ErrInvalidConfig)
	case c.Commitment.Workers < 0 || c.Commitment.ParallelThreshold < 0:
		return fmt.Errorf("%w: commitment workers and parallel_threshold must not be negative", ErrInvalidConfig)
	case c.Roster.Budget < 0 || c.Roster.TransferCost < 0:
		return fmt.Errorf("%w: roster budget and transfer_cost must not be negative", ErrInvalidConfig)
	}
	if c.Schedule.Enabled {
		if c.Schedule.StartCron == "" || c.Schedule.EndCron == "" {
			return fmt.Errorf("%w: schedule needs start_cron and end_cron", ErrInvalidConfig)
		}
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("%w: schedule.timezone: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}
