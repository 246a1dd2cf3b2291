// Package merkle builds and verifies keccak256 Merkle commitments over
// period score leaves.
//
// Nodes are hashed as sorted pairs: the numerically smaller child digest is
// written first. Proofs therefore carry sibling digests only, with no
// left/right markers. Leaf digests are sorted before the tree is built so the
// root is independent of input order. A level with an odd node count carries
// its last node up unchanged; nothing is duplicated.
package merkle

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/okian/matchday/internal/domain/model"
)

const (
	// DefaultParallelThreshold is the level width below which hashing stays
	// on the calling goroutine.
	DefaultParallelThreshold = 1024
	// DefaultWorkers bounds the goroutines used per level.
	DefaultWorkers = 8
)

// Proof is the ordered list of sibling digests from leaf to root.
type Proof []Hash

// Option applies a configuration option to Build and VerifyAll.
type Option func(*options)

type options struct {
	threshold int
	workers   int
}

// WithParallelThreshold sets the minimum level width hashed in parallel.
func WithParallelThreshold(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.threshold = n
		}
	}
}

// WithWorkers bounds the number of hashing goroutines.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{threshold: DefaultParallelThreshold, workers: DefaultWorkers}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Commitment is a built tree. It is immutable and safe for concurrent reads.
type Commitment struct {
	leaves []model.ScoreLeaf // sorted by digest, aligned with levels[0]
	levels [][]Hash          // levels[0] leaf digests, last level the root
	index  map[model.Owner]int
}

// Build commits to leaves. Each owner may appear once.
func Build(ctx context.Context, leaves []model.ScoreLeaf, opts ...Option) (*Commitment, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyLeafSet
	}
	o := newOptions(opts)

	seen := make(map[model.Owner]struct{}, len(leaves))
	for _, lf := range leaves {
		if _, dup := seen[lf.Owner]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLeaf, lf.Owner)
		}
		seen[lf.Owner] = struct{}{}
	}

	digests := make([]Hash, len(leaves))
	err := forEach(ctx, len(leaves), o, func(i int) {
		digests[i] = LeafHash(leaves[i])
	})
	if err != nil {
		return nil, err
	}

	order := make([]int, len(leaves))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return less(digests[order[i]], digests[order[j]])
	})

	c := &Commitment{
		leaves: make([]model.ScoreLeaf, len(leaves)),
		index:  make(map[model.Owner]int, len(leaves)),
	}
	level := make([]Hash, len(leaves))
	for pos, i := range order {
		c.leaves[pos] = leaves[i]
		level[pos] = digests[i]
		c.index[leaves[i].Owner] = pos
	}
	c.levels = append(c.levels, level)

	for len(level) > 1 {
		next := make([]Hash, (len(level)+1)/2)
		cur := level
		err := forEach(ctx, len(cur)/2, o, func(i int) {
			next[i] = hashPair(cur[2*i], cur[2*i+1])
		})
		if err != nil {
			return nil, err
		}
		if len(cur)%2 == 1 {
			next[len(next)-1] = cur[len(cur)-1]
		}
		c.levels = append(c.levels, next)
		level = next
	}
	return c, nil
}

// Root returns the commitment root.
func (c *Commitment) Root() Hash {
	return c.levels[len(c.levels)-1][0]
}

// Len returns the number of leaves.
func (c *Commitment) Len() int {
	return len(c.leaves)
}

// Leaves returns the committed leaves in canonical (digest) order.
func (c *Commitment) Leaves() []model.ScoreLeaf {
	return append([]model.ScoreLeaf(nil), c.leaves...)
}

// Leaf returns the committed leaf for owner.
func (c *Commitment) Leaf(owner model.Owner) (model.ScoreLeaf, bool) {
	pos, ok := c.index[owner]
	if !ok {
		return model.ScoreLeaf{}, false
	}
	return c.leaves[pos], true
}

// Proof returns the inclusion proof for owner's leaf. A single-leaf tree
// yields an empty proof.
func (c *Commitment) Proof(owner model.Owner) (Proof, error) {
	pos, ok := c.index[owner]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLeafNotFound, owner)
	}
	return c.proofAt(pos), nil
}

// Proofs returns every leaf's proof keyed by owner.
func (c *Commitment) Proofs() map[model.Owner]Proof {
	out := make(map[model.Owner]Proof, len(c.leaves))
	for owner, pos := range c.index {
		out[owner] = c.proofAt(pos)
	}
	return out
}

func (c *Commitment) proofAt(pos int) Proof {
	proof := make(Proof, 0, len(c.levels)-1)
	for _, level := range c.levels[:len(c.levels)-1] {
		if sib := pos ^ 1; sib < len(level) {
			proof = append(proof, level[sib])
		}
		pos /= 2
	}
	return proof
}

// forEach runs fn for 0..n-1, spreading the work across goroutines once n
// reaches the parallel threshold.
func forEach(ctx context.Context, n int, o options, fn func(i int)) error {
	if n < o.threshold {
		for i := range n {
			fn(i)
		}
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	chunk := (n + o.workers - 1) / o.workers
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%256 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				fn(i)
			}
			return nil
		})
	}
	return g.Wait()
}
