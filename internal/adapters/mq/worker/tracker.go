package worker

import (
	"errors"
	"sync"
	"time"

	"github.com/okian/matchday/internal/domain/settlement"
)

// Status is a submission's lifecycle state.
type Status string

const (
	StatusQueued        Status = "queued"
	StatusApplied       Status = "applied"
	StatusOraclePending Status = "oracle_pending"
	StatusRejected      Status = "rejected"
	StatusFailed        Status = "failed"
)

// Result is the latest known state of a submission.
type Result struct {
	ID        string    `json:"id"`
	Period    uint64    `json:"period"`
	Status    Status    `json:"status"`
	Applied   int       `json:"applied"`
	Skipped   int       `json:"skipped"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker keeps submission results in memory.
type Tracker struct {
	mu      sync.RWMutex
	results map[string]Result
	now     func() time.Time
}

// NewTracker creates a new Tracker.
func NewTracker() *Tracker {
	return &Tracker{results: make(map[string]Result), now: time.Now}
}

// Queued registers a newly accepted submission.
func (t *Tracker) Queued(id string, period uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results[id] = Result{ID: id, Period: period, Status: StatusQueued, UpdatedAt: t.now().UTC()}
}

// Forget drops a submission that never made it into the queue.
func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.results, id)
}

// Get returns the result recorded for submission id.
func (t *Tracker) Get(id string) (Result, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.results[id]
	return r, ok
}

func (t *Tracker) finish(id string, period uint64, out settlement.Outcome, err error) Result {
	r := Result{
		ID:        id,
		Period:    period,
		Status:    statusOf(err),
		Applied:   out.Applied,
		Skipped:   out.Skipped,
		UpdatedAt: t.now().UTC(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	t.mu.Lock()
	t.results[id] = r
	t.mu.Unlock()
	return r
}

func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusApplied
	case errors.Is(err, settlement.ErrOraclePending):
		return StatusOraclePending
	case errors.Is(err, settlement.ErrInvalidProof),
		errors.Is(err, settlement.ErrUnknownSquad),
		errors.Is(err, settlement.ErrNoQuestion),
		errors.Is(err, settlement.ErrEmptyBatch),
		errors.Is(err, settlement.ErrLengthMismatch),
		errors.Is(err, settlement.ErrScoreRange):
		return StatusRejected
	default:
		return StatusFailed
	}
}
