// Package settlement drives the period lifecycle and credits verified scores
// to squads at most once per (owner, period).
package settlement

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/oracle"
	"github.com/okian/matchday/pkg/logger"
	"github.com/okian/matchday/pkg/metrics"
)

// Phase is the coordinator's lifecycle state.
type Phase uint8

const (
	Idle Phase = iota
	Active
	Ended
)

func (p Phase) String() string {
	switch p {
	case Active:
		return "active"
	case Ended:
		return "ended"
	}
	return "idle"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Ledger is the part of the roster ledger settlement needs.
type Ledger interface {
	Exists(owner model.Owner) bool
	Credit(ctx context.Context, owner model.Owner, period uint64, points int64) error
	ResetTransfers(ctx context.Context) int
}

// Gateway is the part of the oracle gateway settlement needs.
type Gateway interface {
	OpenQuestion(ctx context.Context, period uint64, prompt string) (oracle.QuestionID, error)
	ResolvedRoot(ctx context.Context, id oracle.QuestionID) (oracle.Resolution, error)
	QuestionFor(period uint64) (oracle.QuestionID, bool)
}

// Outcome counts what an ApplyScores call did.
type Outcome struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(lg logger.Logger) Option {
	return func(c *Coordinator) {
		if lg != nil {
			c.logger = lg
		}
	}
}

// Coordinator serializes lifecycle transitions and score application.
type Coordinator struct {
	mu      sync.Mutex
	ledger  Ledger
	gateway Gateway
	records Records
	phase   Phase
	period  uint64
	logger  logger.Logger
}

// NewCoordinator creates a new Coordinator in the idle phase.
func NewCoordinator(ledger Ledger, gateway Gateway, records Records, opts ...Option) *Coordinator {
	c := &Coordinator{
		ledger:  ledger,
		gateway: gateway,
		records: records,
		logger:  logger.OrNop().Named("settlement"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current phase and period.
func (c *Coordinator) State() (Phase, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase, c.period
}

// StartPeriod opens period p and asks the oracle for the root of p-1.
// From Idle any p >= 1 is accepted; from Ended p must follow the last period.
func (c *Coordinator) StartPeriod(ctx context.Context, p uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.phase == Active:
		return fmt.Errorf("start period %d while %d is %s: %w", p, c.period, c.phase, ErrPhase)
	case p == 0:
		return fmt.Errorf("start period 0: %w", ErrPeriodOrder)
	case c.phase == Ended && p != c.period+1:
		return fmt.Errorf("start period %d after %d: %w", p, c.period, ErrPeriodOrder)
	}

	if p > 1 {
		if _, err := c.gateway.OpenQuestion(ctx, p-1, ""); err != nil {
			return fmt.Errorf("start period %d: %w", p, err)
		}
	}
	c.phase = Active
	c.period = p

	metrics.UpdateCurrentPeriod(p)
	c.logger.Info(ctx, "period started", logger.Uint64("period", p))
	return nil
}

// EndPeriod closes the active period p and grants the period's free
// transfers.
func (c *Coordinator) EndPeriod(ctx context.Context, p uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != Active {
		return fmt.Errorf("end period %d while %s: %w", p, c.phase, ErrPhase)
	}
	if p != c.period {
		return fmt.Errorf("end period %d while %d is active: %w", p, c.period, ErrPeriodOrder)
	}
	changed := c.ledger.ResetTransfers(ctx)
	c.phase = Ended

	c.logger.Info(ctx, "period ended", logger.Uint64("period", p), logger.Int("transfers_reset", changed))
	return nil
}

// ApplyScores verifies every leaf against the oracle-finalized root for
// period p and credits the ones not yet applied. Any bad proof or unknown
// squad rejects the whole batch before anything is credited. Re-submitting
// applied leaves is a no-op.
func (c *Coordinator) ApplyScores(ctx context.Context, p uint64, leaves []model.ScoreLeaf, proofs []merkle.Proof) (Outcome, error) {
	var out Outcome
	if len(leaves) == 0 {
		return out, ErrEmptyBatch
	}
	if len(leaves) != len(proofs) {
		return out, fmt.Errorf("%w: %d leaves, %d proofs", ErrLengthMismatch, len(leaves), len(proofs))
	}

	id, ok := c.gateway.QuestionFor(p)
	if !ok {
		return out, fmt.Errorf("period %d: %w", p, ErrNoQuestion)
	}
	res, err := c.gateway.ResolvedRoot(ctx, id)
	if err != nil {
		return out, err
	}
	if res.State != oracle.Finalized {
		return out, fmt.Errorf("period %d question %s: %w", p, id, ErrOraclePending)
	}

	bad, err := merkle.VerifyAll(ctx, leaves, proofs, res.Root)
	if err != nil {
		return out, err
	}
	if bad >= 0 {
		metrics.RecordProofRejected()
		c.logger.Warn(ctx, "settlement rejected",
			logger.Uint64("period", p),
			logger.Int("index", bad),
			logger.String("owner", leaves[bad].Owner.String()),
		)
		return out, &InvalidProofError{Index: bad, Owner: leaves[bad].Owner}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, lf := range leaves {
		if lf.Score > math.MaxInt64 {
			return out, fmt.Errorf("%w: leaf %d score %d", ErrScoreRange, i, lf.Score)
		}
		if !c.ledger.Exists(lf.Owner) {
			return out, fmt.Errorf("%w: leaf %d (%s)", ErrUnknownSquad, i, lf.Owner)
		}
	}

	// Past this point every leaf is valid. A storage failure midway leaves
	// the pairs applied so far both credited and recorded, so a retry skips
	// them.
	for _, lf := range leaves {
		seen, err := c.records.SeenAndRecord(ctx, lf.Owner, p, lf.Score)
		if err != nil {
			return out, fmt.Errorf("record %s period %d: %w", lf.Owner, p, err)
		}
		if seen {
			out.Skipped++
			continue
		}
		if err := c.ledger.Credit(ctx, lf.Owner, p, int64(lf.Score)); err != nil {
			if uerr := c.records.Unrecord(ctx, lf.Owner, p); uerr != nil {
				c.logger.Error(ctx, "unrecord after failed credit", logger.Error(uerr))
			}
			return out, fmt.Errorf("credit %s period %d: %w", lf.Owner, p, err)
		}
		out.Applied++
	}

	metrics.RecordScoresApplied(out.Applied)
	metrics.RecordScoresSkipped(out.Skipped)
	c.logger.Info(ctx, "scores applied",
		logger.Uint64("period", p),
		logger.Int("applied", out.Applied),
		logger.Int("skipped", out.Skipped),
	)
	return out, nil
}
