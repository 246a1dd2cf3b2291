// Package worker applies queued settlement submissions one at a time, so
// every batch is applied in arrival order.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/matchday/internal/adapters/mq/queue"
	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/settlement"
	"github.com/okian/matchday/pkg/logger"
	"github.com/okian/matchday/pkg/metrics"
)

// Applier settles a verified batch.
type Applier interface {
	ApplyScores(ctx context.Context, period uint64, leaves []model.ScoreLeaf, proofs []merkle.Proof) (settlement.Outcome, error)
}

// Queue defines how the worker receives submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Submission
}

// InMemoryWorker drains a Queue into an Applier.
type InMemoryWorker struct {
	queue   Queue
	applier Applier
	tracker *Tracker
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new InMemoryWorker that feeds q into applier.
func NewInMemoryWorker(q Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		applier:  applier,
		tracker:  NewTracker(),
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.OrNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Tracker returns the tracker the worker reports to.
func (w *InMemoryWorker) Tracker() *Tracker {
	return w.tracker
}

// Run processes submissions until ctx is done, Shutdown is called or the
// queue is closed and drained.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	subs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case s, ok := <-subs:
			if !ok {
				return
			}
			w.process(ctx, s)
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// Shutdown stops the loop and waits for the in-flight submission.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, s queue.Submission) {
	out, err := w.applier.ApplyScores(ctx, s.Period, s.Leaves, s.Proofs)
	r := w.tracker.finish(s.ID, s.Period, out, err)
	metrics.RecordSubmission(string(r.Status))

	if err != nil {
		w.logger.Warn(ctx, "settlement submission not applied",
			logger.String("submission", s.ID),
			logger.Uint64("period", s.Period),
			logger.String("status", string(r.Status)),
			logger.Error(err),
		)
		return
	}
	w.logger.Info(ctx, "settlement submission applied",
		logger.String("submission", s.ID),
		logger.Uint64("period", s.Period),
		logger.Int("applied", out.Applied),
		logger.Int("skipped", out.Skipped),
	)
}
