package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/pkg/logger"
)

// codeOraclePending is the API error code while a root is not yet final.
const codeOraclePending = "oracle_pending"

// ErrNoQuestion means the service never opened a question for a period.
var ErrNoQuestion = errors.New("no oracle question for period")

type runner struct {
	cfg     Config
	client  *Client
	logger  logger.Logger
	rng     *rand.Rand
	stats   *Stats
	commits map[uint64]Commitment
	owners  []model.Owner
}

// Run plays a full season against the service at cfg.BaseURL: it registers
// squads, plays cfg.Periods periods, settles each one through the oracle and
// verifies the resulting standings.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	c := cfg.withDefaults()
	r := &runner{
		cfg:     c,
		client:  NewClient(c.BaseURL, c.Timeout),
		logger:  c.Logger,
		rng:     rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15)),
		stats:   &Stats{StartTime: time.Now()},
		commits: make(map[uint64]Commitment, c.Periods),
	}

	r.logger.Info(ctx, "starting season simulation",
		logger.String("baseURL", c.BaseURL),
		logger.Int("squads", c.Squads),
		logger.Int("periods", c.Periods),
		logger.Int("workers", c.Workers),
		logger.Uint64("seed", c.Seed))

	if err := r.client.Health(ctx); err != nil {
		return r.stats, fmt.Errorf("service health check failed: %w", err)
	}
	if err := r.registerSquads(ctx); err != nil {
		return r.stats, fmt.Errorf("squad registration failed: %w", err)
	}
	if err := r.playSeason(ctx); err != nil {
		return r.stats, err
	}
	if err := r.verify(ctx); err != nil {
		return r.stats, fmt.Errorf("standings verification failed: %w", err)
	}

	r.stats.EndTime = time.Now()
	r.stats.Duration = r.stats.EndTime.Sub(r.stats.StartTime)
	r.logStats(ctx)
	return r.stats, nil
}

func (r *runner) registerSquads(ctx context.Context) error {
	pool, err := r.client.Players(ctx)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	owners := generateOwners(r.rng, r.cfg.Squads)
	plans := make([]Plan, 0, len(owners))
	for _, o := range owners {
		p, err := generatePlan(r.rng, o, pool, DefaultLimits())
		if err != nil {
			return err
		}
		plans = append(plans, p)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, p := range plans {
		g.Go(func() error {
			err := r.createSquad(gctx, p)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.stats.SquadsFailed++
				r.logger.Warn(gctx, "squad registration failed", logger.String("owner", p.Owner.String()), logger.Error(err))
				return nil
			}
			r.stats.SquadsCreated++
			r.owners = append(r.owners, p.Owner)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if r.stats.SquadsCreated == 0 {
		return fmt.Errorf("no squads registered out of %d", len(plans))
	}
	r.logger.Info(ctx, "squads registered", logger.Int("created", r.stats.SquadsCreated), logger.Int("failed", r.stats.SquadsFailed))
	return nil
}

func (r *runner) createSquad(ctx context.Context, p Plan) error {
	if err := r.client.CreateSquad(ctx, p.Owner); err != nil {
		return err
	}
	for _, id := range p.Players {
		if err := r.client.AddPlayer(ctx, p.Owner, id); err != nil {
			return fmt.Errorf("add player %d: %w", id, err)
		}
	}
	if err := r.client.SetLineup(ctx, p.Owner, p.Starters); err != nil {
		return fmt.Errorf("lineup: %w", err)
	}
	if err := r.client.SetCaptain(ctx, p.Owner, p.Captain, p.Vice); err != nil {
		return fmt.Errorf("captain: %w", err)
	}
	if r.cfg.Verbose {
		r.logger.Debug(ctx, "squad registered", logger.String("owner", p.Owner.String()))
	}
	return nil
}

// playSeason runs each period in order. Period p's root is only asked for
// when p+1 starts, so settlement trails play by one period.
func (r *runner) playSeason(ctx context.Context) error {
	last := uint64(r.cfg.Periods)
	for p := uint64(1); p <= last; p++ {
		if err := r.client.StartPeriod(ctx, p); err != nil {
			return fmt.Errorf("start period %d: %w", p, err)
		}
		if p > 1 {
			if err := r.settle(ctx, p-1); err != nil {
				return fmt.Errorf("settle period %d: %w", p-1, err)
			}
		}
		c, err := r.client.BuildCommitment(ctx, p)
		if err != nil {
			return fmt.Errorf("commit period %d: %w", p, err)
		}
		r.commits[p] = c
		r.stats.PeriodsCommitted++
		if r.cfg.Verbose {
			r.logger.Debug(ctx, "period committed", logger.Uint64("period", p), logger.String("root", c.Root.String()), logger.Int("leaves", c.Count))
		}
		if err := r.client.EndPeriod(ctx, p); err != nil {
			return fmt.Errorf("end period %d: %w", p, err)
		}
	}
	if last == 0 {
		return nil
	}
	if err := r.client.StartPeriod(ctx, last+1); err != nil {
		return fmt.Errorf("start period %d: %w", last+1, err)
	}
	if err := r.settle(ctx, last); err != nil {
		return fmt.Errorf("settle period %d: %w", last, err)
	}
	return nil
}

// settle answers period p's oracle question with the published root, then
// submits every proven leaf until the answer has finalized.
func (r *runner) settle(ctx context.Context, p uint64) error {
	c, ok := r.commits[p]
	if !ok {
		return fmt.Errorf("period %d was never committed", p)
	}
	if err := r.answer(ctx, p, c.Root); err != nil {
		return err
	}

	leaves := make([]model.ScoreLeaf, 0, len(c.Leaves))
	proofs := make([]merkle.Proof, 0, len(c.Leaves))
	for _, l := range c.Leaves {
		pr, err := r.client.Proof(ctx, p, l.Owner)
		if err != nil {
			return fmt.Errorf("proof for %s: %w", l.Owner, err)
		}
		leaves = append(leaves, pr.Leaf)
		proofs = append(proofs, pr.Proof)
	}

	deadline := time.Now().Add(r.cfg.SettleTimeout)
	for {
		out, err := r.client.Settle(ctx, p, leaves, proofs)
		if err == nil {
			r.stats.PeriodsSettled++
			r.stats.LeavesApplied += out.Applied
			r.stats.LeavesSkipped += out.Skipped
			r.logger.Info(ctx, "period settled", logger.Uint64("period", p), logger.Int("applied", out.Applied), logger.Int("skipped", out.Skipped))
			return nil
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != codeOraclePending {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("oracle still pending after %s: %w", r.cfg.SettleTimeout, err)
		}
		r.stats.PendingRetries++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

func (r *runner) answer(ctx context.Context, p uint64, root merkle.Hash) error {
	qs, err := r.client.Questions(ctx)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	for _, q := range qs {
		if q.Period != p {
			continue
		}
		bond := max(q.MinBond, 1)
		if err := r.client.Answer(ctx, q.ID, root, bond, r.cfg.Answerer); err != nil {
			return fmt.Errorf("answer question %s: %w", q.ID, err)
		}
		if r.cfg.Verbose {
			r.logger.Debug(ctx, "question answered", logger.String("id", q.ID), logger.Uint64("bond", bond))
		}
		return nil
	}
	return fmt.Errorf("%w %d", ErrNoQuestion, p)
}

func (r *runner) logStats(ctx context.Context) {
	var perSecond float64
	if r.stats.Duration > 0 {
		perSecond = float64(r.stats.LeavesApplied) / r.stats.Duration.Seconds()
	}
	r.logger.Info(ctx, "season simulation completed",
		logger.Int("squadsCreated", r.stats.SquadsCreated),
		logger.Int("squadsFailed", r.stats.SquadsFailed),
		logger.Int("periodsCommitted", r.stats.PeriodsCommitted),
		logger.Int("periodsSettled", r.stats.PeriodsSettled),
		logger.Int("leavesApplied", r.stats.LeavesApplied),
		logger.Int("leavesSkipped", r.stats.LeavesSkipped),
		logger.Int("pendingRetries", r.stats.PendingRetries),
		logger.Int("standingsChecked", r.stats.StandingsChecked),
		logger.String("duration", r.stats.Duration.String()),
		logger.Any("leavesPerSecond", perSecond))
}
