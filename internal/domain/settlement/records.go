package settlement

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/okian/matchday/internal/domain/model"
)

// Records tracks which (owner, period) pairs have been credited.
type Records interface {
	// SeenAndRecord atomically checks whether (owner, period) was applied and
	// records it with score if not. It returns true when the pair was already
	// recorded.
	SeenAndRecord(ctx context.Context, owner model.Owner, period uint64, score uint64) (bool, error)

	// Unrecord forgets a pair. Used only to roll back a record whose credit
	// failed.
	Unrecord(ctx context.Context, owner model.Owner, period uint64) error

	// Applied reports whether (owner, period) is recorded.
	Applied(ctx context.Context, owner model.Owner, period uint64) (bool, error)

	// Credits lists owner's recorded scores ordered by period.
	Credits(ctx context.Context, owner model.Owner) ([]Credit, error)

	Size(ctx context.Context) (int64, error)
}

// Credit is one recorded (period, score) pair for an owner.
type Credit struct {
	Period uint64
	Score  uint64
}

type recordKey struct {
	owner  model.Owner
	period uint64
}

type memoryRecords struct {
	mu   sync.RWMutex
	seen map[recordKey]uint64
	size atomic.Int64
}

// NewMemoryRecords returns an unbounded in-memory Records. Entries are never
// evicted.
func NewMemoryRecords() Records {
	return &memoryRecords{seen: make(map[recordKey]uint64)}
}

func (r *memoryRecords) SeenAndRecord(_ context.Context, owner model.Owner, period uint64, score uint64) (bool, error) {
	k := recordKey{owner, period}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[k]; ok {
		return true, nil
	}
	r.seen[k] = score
	r.size.Add(1)
	return false, nil
}

func (r *memoryRecords) Unrecord(_ context.Context, owner model.Owner, period uint64) error {
	k := recordKey{owner, period}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[k]; ok {
		delete(r.seen, k)
		r.size.Add(-1)
	}
	return nil
}

func (r *memoryRecords) Applied(_ context.Context, owner model.Owner, period uint64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.seen[recordKey{owner, period}]
	return ok, nil
}

func (r *memoryRecords) Credits(_ context.Context, owner model.Owner) ([]Credit, error) {
	r.mu.RLock()
	var out []Credit
	for k, score := range r.seen {
		if k.owner == owner {
			out = append(out, Credit{Period: k.period, Score: score})
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

func (r *memoryRecords) Size(context.Context) (int64, error) {
	return r.size.Load(), nil
}
