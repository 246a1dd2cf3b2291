package repository

import (
	"bytes"
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/matchday/internal/domain/model"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: points DESC, then owner ASC (deterministic). "less" means ranks
// earlier, so in-order traversal yields the standings from best to worst.
// Ranks use competition ranking: tied squads share a rank and the next rank
// skips the tied positions (1, 2, 2, 4).

// Snapshot is an immutable copy of the leading rows.
type Snapshot struct {
	Top   []Entry   `json:"top"`
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}

type node struct {
	owner  model.Owner
	points int64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aPts int64, a model.Owner, bPts int64, b model.Owner) bool {
	if aPts != bPts {
		return aPts > bPts
	}
	return bytes.Compare(a[:], b[:]) < 0
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, owner model.Owner, points int64) *node {
	if n == nil {
		return &node{owner: owner, points: points, prio: rand.Uint64(), size: 1}
	}
	if less(points, owner, n.points, n.owner) {
		n.left = insert(n.left, owner, points)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, owner, points)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, owner model.Owner, points int64) *node {
	if n == nil {
		return nil
	}
	if points == n.points && owner == n.owner {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, owner, points)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, owner, points)
		}
	} else if less(points, owner, n.points, n.owner) {
		n.left = deleteNode(n.left, owner, points)
	} else {
		n.right = deleteNode(n.right, owner, points)
	}
	fix(n)
	return n
}

// countAbove returns the number of squads with strictly more points.
func countAbove(n *node, points int64) int {
	c := 0
	for n != nil {
		if n.points > points {
			c += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return c
}

// collectTopN appends up to limit rows in rank order. Ranks are filled in by
// the caller.
func collectTopN(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, Entry{Owner: n.owner, Points: n.points})
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// assignRanks fills competition ranks for rows taken from the top of the
// standings.
func assignRanks(entries []Entry) {
	for i := range entries {
		if i > 0 && entries[i].Points == entries[i-1].Points {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}

type TreapStore struct {
	mu               sync.RWMutex
	root             *node
	byOwner          map[model.Owner]int64
	snapshotInterval time.Duration
	topCacheSize     int

	snapshot atomic.Pointer[Snapshot]

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*TreapStore)(nil)

// NewTreapStore constructs a treap store and starts publishing snapshots
// until ctx is done or Close is called.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		snapshotInterval: time.Second,
		topCacheSize:     100,
		byOwner:          make(map[model.Owner]int64),
		stopChan:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.publishSnapshot()
	s.startPeriodicSnapshots(ctx)
	return s
}

func (s *TreapStore) startPeriodicSnapshots(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.publishSnapshot()
			}
		}
	}()
}

func (s *TreapStore) publishSnapshot() {
	s.mu.RLock()
	top := make([]Entry, 0, min(s.topCacheSize, len(s.byOwner)))
	collectTopN(s.root, s.topCacheSize, &top)
	count := len(s.byOwner)
	s.mu.RUnlock()

	assignRanks(top)
	s.snapshot.Store(&Snapshot{Top: top, Count: count, At: time.Now().UTC()})
}

// Snapshot returns the most recently published snapshot.
func (s *TreapStore) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Refresh publishes a snapshot immediately.
func (s *TreapStore) Refresh() {
	s.publishSnapshot()
}

// Close stops the snapshot goroutine.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Set implements Store.Set in O(log n) expected time.
func (s *TreapStore) Set(_ context.Context, owner model.Owner, points int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byOwner[owner]; ok {
		if old == points {
			return false, nil
		}
		s.root = deleteNode(s.root, owner, old)
	}
	s.byOwner[owner] = points
	s.root = insert(s.root, owner, points)
	return true, nil
}

// Remove implements Store.Remove.
func (s *TreapStore) Remove(_ context.Context, owner model.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.byOwner[owner]
	if !ok {
		return ErrNotFound
	}
	s.root = deleteNode(s.root, owner, old)
	delete(s.byOwner, owner)
	return nil
}

// Rank returns owner's row in O(log n) expected time.
func (s *TreapStore) Rank(_ context.Context, owner model.Owner) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points, ok := s.byOwner[owner]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{Rank: 1 + countAbove(s.root, points), Owner: owner, Points: points}, nil
}

// TopN returns the top n rows.
func (s *TreapStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	out := make([]Entry, 0, min(n, len(s.byOwner)))
	collectTopN(s.root, n, &out)
	s.mu.RUnlock()

	assignRanks(out)
	return out, nil
}

// Count returns the number of squads tracked.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byOwner)
}
