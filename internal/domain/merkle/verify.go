package merkle

import (
	"context"
	"fmt"

	"github.com/okian/matchday/internal/domain/model"
)

// Verify reports whether proof links leaf to root.
func Verify(leaf model.ScoreLeaf, proof Proof, root Hash) bool {
	h := LeafHash(leaf)
	for _, sib := range proof {
		h = hashPair(h, sib)
	}
	return h == root
}

// VerifyAll checks every (leaf, proof) pair against root. It returns the
// index of the first pair that fails, or -1 when all verify. The error is
// non-nil only for mismatched lengths or a cancelled context.
func VerifyAll(ctx context.Context, leaves []model.ScoreLeaf, proofs []Proof, root Hash, opts ...Option) (int, error) {
	if len(leaves) != len(proofs) {
		return -1, fmt.Errorf("%w: %d leaves, %d proofs", ErrLengthMismatch, len(leaves), len(proofs))
	}
	ok := make([]bool, len(leaves))
	err := forEach(ctx, len(leaves), newOptions(opts), func(i int) {
		ok[i] = Verify(leaves[i], proofs[i], root)
	})
	if err != nil {
		return -1, err
	}
	for i, v := range ok {
		if !v {
			return i, nil
		}
	}
	return -1, nil
}
