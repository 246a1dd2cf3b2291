// Package scheduler starts and ends periods on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/okian/matchday/internal/domain/settlement"
	"github.com/okian/matchday/pkg/logger"
)

var ErrNoSchedule = errors.New("start and end schedules are required")

// Lifecycle is the part of the coordinator the scheduler drives.
type Lifecycle interface {
	State() (settlement.Phase, uint64)
	StartPeriod(ctx context.Context, p uint64) error
	EndPeriod(ctx context.Context, p uint64) error
}

// Config holds the cron expressions (standard five fields) and the zone
// they are read in.
type Config struct {
	StartCron string
	EndCron   string
	Timezone  string
}

type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(lg logger.Logger) Option {
	return func(s *Scheduler) {
		if lg != nil {
			s.logger = lg
		}
	}
}

// WithClock drives the scheduler from c.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

type Scheduler struct {
	s         gocron.Scheduler
	lifecycle Lifecycle
	cfg       Config
	clock     clockwork.Clock
	logger    logger.Logger
	timeout   time.Duration
}

// New creates a new Scheduler. It fails when a cron expression is missing or
// the timezone is unknown.
func New(lifecycle Lifecycle, cfg Config, opts ...Option) (*Scheduler, error) {
	if cfg.StartCron == "" || cfg.EndCron == "" {
		return nil, ErrNoSchedule
	}
	sc := &Scheduler{
		lifecycle: lifecycle,
		cfg:       cfg,
		clock:     clockwork.NewRealClock(),
		logger:    logger.OrNop().Named("scheduler"),
		timeout:   time.Minute,
	}
	for _, opt := range opts {
		opt(sc)
	}

	location := time.UTC
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load location %q: %w", cfg.Timezone, err)
		}
		location = loc
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(location),
		gocron.WithClock(sc.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	sc.s = s
	return sc, nil
}

// Start registers the period jobs and begins running them.
func (sc *Scheduler) Start() error {
	if _, err := sc.s.NewJob(
		gocron.CronJob(sc.cfg.StartCron, false),
		gocron.NewTask(sc.run, "start", sc.StartNext),
		gocron.WithName("start-period"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("failed to create start-period job: %w", err)
	}
	if _, err := sc.s.NewJob(
		gocron.CronJob(sc.cfg.EndCron, false),
		gocron.NewTask(sc.run, "end", sc.EndCurrent),
		gocron.WithName("end-period"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("failed to create end-period job: %w", err)
	}
	sc.s.Start()
	return nil
}

// Stop waits for running jobs and stops the scheduler.
func (sc *Scheduler) Stop() error {
	return sc.s.Shutdown()
}

func (sc *Scheduler) run(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), sc.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		sc.logger.Error(ctx, "scheduled job failed", logger.String("job", name), logger.Error(err))
	}
}

// StartNext starts the period after the last one. It does nothing while a
// period is active.
func (sc *Scheduler) StartNext(ctx context.Context) error {
	phase, p := sc.lifecycle.State()
	if phase == settlement.Active {
		sc.logger.Debug(ctx, "period already active", logger.Uint64("period", p))
		return nil
	}
	return sc.lifecycle.StartPeriod(ctx, p+1)
}

// EndCurrent ends the active period, if any.
func (sc *Scheduler) EndCurrent(ctx context.Context) error {
	phase, p := sc.lifecycle.State()
	if phase != settlement.Active {
		sc.logger.Debug(ctx, "no active period to end")
		return nil
	}
	return sc.lifecycle.EndPeriod(ctx, p)
}
