// Package service wires the roster ledger, score engine, commitment builder,
// oracle gateway and settlement coordinator behind the operations the HTTP
// API and the scheduler need.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/matchday/internal/adapters/mq/queue"
	"github.com/okian/matchday/internal/adapters/mq/worker"
	"github.com/okian/matchday/internal/adapters/repository"
	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/oracle"
	"github.com/okian/matchday/internal/domain/roster"
	"github.com/okian/matchday/internal/domain/scoring"
	"github.com/okian/matchday/internal/domain/settlement"
	"github.com/okian/matchday/pkg/logger"
	"github.com/okian/matchday/pkg/metrics"
)

// StatsSource supplies raw match statistics per period.
type StatsSource interface {
	Stats(ctx context.Context, period uint64) (map[model.PlayerID]model.MatchStats, error)
}

const drainTimeout = 10 * time.Second

// Service implements the API dependencies for the settlement system.
type Service struct {
	mu sync.RWMutex

	ledger      *roster.Ledger
	engine      *scoring.Engine
	gateway     *oracle.Gateway
	coordinator *settlement.Coordinator
	records     settlement.Records
	standings   *repository.TreapStore
	stats       StatsSource

	commitments map[uint64]*merkle.Commitment

	queue   *queue.InMemoryQueue
	worker  *worker.InMemoryWorker
	tracker *worker.Tracker

	// Configuration
	limits           roster.Limits
	rules            scoring.Rules
	params           oracle.Params
	queueSize        int
	snapshotInterval time.Duration
	merkleOpts       []merkle.Option

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets the logger passed to every component of the service.
func WithLogger(lg logger.Logger) Option {
	return func(s *Service) {
		if lg != nil {
			s.logger = lg
		}
	}
}

// WithLimits sets the squad composition limits.
func WithLimits(l roster.Limits) Option {
	return func(s *Service) { s.limits = l }
}

// WithRules sets the scoring rules used to build commitments.
func WithRules(r scoring.Rules) Option {
	return func(s *Service) { s.rules = r }
}

// WithOracleParams sets the timeout and minimum bond of opened questions.
func WithOracleParams(p oracle.Params) Option {
	return func(s *Service) { s.params = p }
}

// WithRecords replaces the in-memory settlement records, e.g. with SQLite.
func WithRecords(r settlement.Records) Option {
	return func(s *Service) {
		if r != nil {
			s.records = r
		}
	}
}

// WithQueueSize sets the maximum number of pending async submissions.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithSnapshotInterval sets how often the standings snapshot is republished.
func WithSnapshotInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.snapshotInterval = d
		}
	}
}

// WithMerkleOptions tunes commitment building and batch verification.
func WithMerkleOptions(opts ...merkle.Option) Option {
	return func(s *Service) { s.merkleOpts = append(s.merkleOpts, opts...) }
}

// New constructs the service. Async submissions need Start.
func New(registry roster.Registry, stats StatsSource, o oracle.Oracle, opts ...Option) *Service {
	s := &Service{
		stats:            stats,
		commitments:      make(map[uint64]*merkle.Commitment),
		limits:           roster.DefaultLimits(),
		rules:            scoring.DefaultRules(),
		params:           oracle.Params{Timeout: 24 * time.Hour, MinBond: 1},
		queueSize:        1024,
		snapshotInterval: time.Second,
		logger:           logger.OrNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.records == nil {
		s.records = settlement.NewMemoryRecords()
	}

	s.standings = repository.NewTreapStore(context.Background(), repository.WithSnapshotInterval(s.snapshotInterval))
	s.engine = scoring.NewEngine(scoring.WithRules(s.rules))
	s.ledger = roster.NewLedger(registry,
		roster.WithLimits(s.limits),
		roster.WithLogger(s.logger.Named("roster")),
		roster.WithPointsObserver(s.updateStandings),
	)
	s.gateway = oracle.NewGateway(o,
		oracle.WithParams(s.params),
		oracle.WithLogger(s.logger.Named("oracle")),
	)
	s.coordinator = settlement.NewCoordinator(s.ledger, s.gateway, s.records,
		settlement.WithLogger(s.logger.Named("settlement")),
	)
	s.tracker = worker.NewTracker()
	return s
}

// Start launches the settlement worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.worker = worker.NewInMemoryWorker(s.queue, s,
		worker.WithName("settlement-worker"),
		worker.WithLogger(s.logger),
		worker.WithTracker(s.tracker),
	)
	go s.worker.Run(ctx)

	s.started = true
	s.logger.Info(ctx, "matchday service started", logger.Int("queueSize", s.queueSize))
	return nil
}

// Stop drains queued submissions, then stops the worker and the standings
// snapshotter.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		_ = s.queue.Close()
		drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
		select {
		case <-s.worker.Done():
		case <-drainCtx.Done():
			s.logger.Warn(ctx, "settlement queue not drained", logger.Int("pending", s.queue.Len(ctx)))
		}
		_ = s.worker.Shutdown(drainCtx)
		cancel()
		s.started = false
	}
	_ = s.standings.Close()
	s.logger.Info(ctx, "matchday service stopped")
}

func (s *Service) updateStandings(ctx context.Context, owner model.Owner, total int64) {
	if _, err := s.standings.Set(ctx, owner, total); err != nil {
		s.logger.Error(ctx, "standings update failed", logger.String("owner", owner.String()), logger.Error(err))
	}
}

// Squads

// CreateSquad registers owner, joining the active period or the next one.
// Scores already recorded for owner are credited back, so a squad
// registered again against durable records keeps its settled points.
func (s *Service) CreateSquad(ctx context.Context, owner model.Owner) (*model.Squad, error) {
	phase, p := s.coordinator.State()
	joined := p
	if phase != settlement.Active {
		joined = p + 1
	}
	credits, err := s.records.Credits(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("settlement records for %s: %w", owner, err)
	}
	if err := s.ledger.Create(ctx, owner, joined); err != nil {
		return nil, err
	}
	s.updateStandings(ctx, owner, 0)
	for _, c := range credits {
		if err := s.ledger.Credit(ctx, owner, c.Period, int64(c.Score)); err != nil {
			return nil, fmt.Errorf("restore period %d points: %w", c.Period, err)
		}
	}
	if len(credits) > 0 {
		s.logger.Info(ctx, "squad points restored",
			logger.String("owner", owner.String()),
			logger.Int("periods", len(credits)))
	}
	return s.ledger.Squad(ctx, owner)
}

// Squad returns a copy of owner's squad.
func (s *Service) Squad(ctx context.Context, owner model.Owner) (*model.Squad, error) {
	return s.ledger.Squad(ctx, owner)
}

func (s *Service) AddPlayer(ctx context.Context, owner model.Owner, id model.PlayerID) (*model.Squad, error) {
	if err := s.ledger.AddSlot(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.ledger.Squad(ctx, owner)
}

func (s *Service) RemovePlayer(ctx context.Context, owner model.Owner, id model.PlayerID) (*model.Squad, error) {
	if err := s.ledger.RemoveSlot(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.ledger.Squad(ctx, owner)
}

func (s *Service) Transfer(ctx context.Context, owner model.Owner, out, in model.PlayerID) (*model.Squad, error) {
	if err := s.ledger.Transfer(ctx, owner, out, in); err != nil {
		return nil, err
	}
	return s.ledger.Squad(ctx, owner)
}

func (s *Service) UseWildcard(ctx context.Context, owner model.Owner) (*model.Squad, error) {
	if err := s.ledger.UseWildcard(ctx, owner); err != nil {
		return nil, err
	}
	return s.ledger.Squad(ctx, owner)
}

func (s *Service) SetLineup(ctx context.Context, owner model.Owner, starters []model.PlayerID) (*model.Squad, error) {
	if err := s.ledger.SetLineup(ctx, owner, starters); err != nil {
		return nil, err
	}
	return s.ledger.Squad(ctx, owner)
}

func (s *Service) SetCaptain(ctx context.Context, owner model.Owner, captain, vice model.PlayerID) (*model.Squad, error) {
	if err := s.ledger.SetCaptain(ctx, owner, captain, vice); err != nil {
		return nil, err
	}
	return s.ledger.Squad(ctx, owner)
}

// Periods

// State returns the current phase and period.
func (s *Service) State() (settlement.Phase, uint64) {
	return s.coordinator.State()
}

// StartPeriod opens period p. Starting p seals the commitment for p-1.
func (s *Service) StartPeriod(ctx context.Context, p uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coordinator.StartPeriod(ctx, p)
}

// EndPeriod closes the active period p.
func (s *Service) EndPeriod(ctx context.Context, p uint64) error {
	return s.coordinator.EndPeriod(ctx, p)
}

// Question returns the oracle question opened for period.
func (s *Service) Question(period uint64) (oracle.QuestionID, bool) {
	return s.gateway.QuestionFor(period)
}

// Commitments

// BuildCommitment scores every squad that had joined by period and builds
// the Merkle commitment over the results. A period's commitment can be
// rebuilt until its oracle question is opened.
func (s *Service) BuildCommitment(ctx context.Context, period uint64) (*merkle.Commitment, error) {
	if _, sealed := s.gateway.QuestionFor(period); sealed {
		return nil, fmt.Errorf("period %d: %w", period, ErrCommitmentSealed)
	}
	start := time.Now()

	stats, err := s.stats.Stats(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("stats for period %d: %w", period, err)
	}
	squads := s.ledger.Squads(ctx)
	leaves := make([]model.ScoreLeaf, 0, len(squads))
	for _, sq := range squads {
		if sq.JoinedPeriod > period {
			continue
		}
		leaves = append(leaves, model.ScoreLeaf{
			Owner: sq.Owner,
			Score: uint64(s.engine.SquadScore(sq, stats)),
		})
	}

	c, err := merkle.Build(ctx, leaves, s.merkleOpts...)
	if err != nil {
		return nil, fmt.Errorf("build commitment for period %d: %w", period, err)
	}

	s.mu.Lock()
	if _, sealed := s.gateway.QuestionFor(period); sealed {
		s.mu.Unlock()
		return nil, fmt.Errorf("period %d: %w", period, ErrCommitmentSealed)
	}
	s.commitments[period] = c
	s.mu.Unlock()

	elapsed := time.Since(start)
	metrics.RecordCommitmentBuilt(c.Len(), float64(elapsed.Microseconds())/1000)
	s.logger.Info(ctx, "commitment built",
		logger.Uint64("period", period),
		logger.Int("leaves", c.Len()),
		logger.String("root", c.Root().String()),
	)
	return c, nil
}

// Commitment returns the stored commitment for period.
func (s *Service) Commitment(period uint64) (*merkle.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commitments[period]
	if !ok {
		return nil, fmt.Errorf("period %d: %w", period, ErrNoCommitment)
	}
	return c, nil
}

// Proof returns owner's leaf and inclusion proof in period's commitment.
func (s *Service) Proof(period uint64, owner model.Owner) (model.ScoreLeaf, merkle.Proof, error) {
	c, err := s.Commitment(period)
	if err != nil {
		return model.ScoreLeaf{}, nil, err
	}
	leaf, ok := c.Leaf(owner)
	if !ok {
		return model.ScoreLeaf{}, nil, fmt.Errorf("period %d owner %s: %w", period, owner, merkle.ErrLeafNotFound)
	}
	proof, err := c.Proof(owner)
	if err != nil {
		return model.ScoreLeaf{}, nil, err
	}
	return leaf, proof, nil
}

// Settlement

// ApplyScores settles a batch and republishes the standings snapshot.
func (s *Service) ApplyScores(ctx context.Context, period uint64, leaves []model.ScoreLeaf, proofs []merkle.Proof) (settlement.Outcome, error) {
	out, err := s.coordinator.ApplyScores(ctx, period, leaves, proofs)
	if out.Applied > 0 {
		s.standings.Refresh()
	}
	return out, err
}

// SubmitScores queues a batch for the settlement worker and returns its
// submission id.
func (s *Service) SubmitScores(ctx context.Context, period uint64, leaves []model.ScoreLeaf, proofs []merkle.Proof) (string, error) {
	s.mu.RLock()
	started, q := s.started, s.queue
	s.mu.RUnlock()
	if !started {
		return "", ErrNotStarted
	}

	id := uuid.NewString()
	s.tracker.Queued(id, period)
	err := q.Enqueue(ctx, queue.Submission{
		ID:          id,
		Period:      period,
		Leaves:      leaves,
		Proofs:      proofs,
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		s.tracker.Forget(id)
		if errors.Is(err, queue.ErrFull) {
			return "", ErrQueueFull
		}
		return "", fmt.Errorf("enqueue submission: %w", err)
	}
	s.logger.Debug(ctx, "settlement submission queued", logger.String("submission", id), logger.Uint64("period", period))
	return id, nil
}

// Submission reports an async submission's state.
func (s *Service) Submission(id string) (worker.Result, bool) {
	return s.tracker.Get(id)
}

// Applied reports whether owner's period score has been settled.
func (s *Service) Applied(ctx context.Context, owner model.Owner, period uint64) (bool, error) {
	return s.records.Applied(ctx, owner, period)
}

// Standings

// TopN returns the n best squads.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	return s.standings.TopN(ctx, n)
}

// Rank returns owner's standing.
func (s *Service) Rank(ctx context.Context, owner model.Owner) (repository.Entry, error) {
	return s.standings.Rank(ctx, owner)
}

// Snapshot returns the last published standings snapshot.
func (s *Service) Snapshot() *repository.Snapshot {
	return s.standings.Snapshot()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	phase, period := s.coordinator.State()
	stats := map[string]any{
		"phase":   phase.String(),
		"period":  period,
		"squads":  s.ledger.Count(),
		"started": false,
	}
	if n, err := s.records.Size(ctx); err == nil {
		stats["settlementRecords"] = n
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	stats["commitments"] = len(s.commitments)
	if s.started {
		stats["started"] = true
		stats["queueLength"] = s.queue.Len(ctx)
	}
	return stats
}
