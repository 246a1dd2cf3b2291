package merkle_test

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"golang.org/x/crypto/sha3"

	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func owner(n int) model.Owner {
	var o model.Owner
	binary.BigEndian.PutUint32(o[16:], uint32(n))
	return o
}

func leaves(n int) []model.ScoreLeaf {
	out := make([]model.ScoreLeaf, n)
	for i := range out {
		out[i] = model.ScoreLeaf{Owner: owner(i + 1), Score: uint64(10 * (i + 1))}
	}
	return out
}

func keccak(parts ...[]byte) merkle.Hash {
	d := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		d.Write(p)
	}
	var h merkle.Hash
	d.Sum(h[:0])
	return h
}

func TestLeafHash(t *testing.T) {
	Convey("Given a leaf", t, func() {
		lf := model.ScoreLeaf{Owner: owner(7), Score: 0x0102}

		Convey("Then it hashes the packed owner and 32-byte big-endian score", func() {
			score := make([]byte, 32)
			score[30], score[31] = 0x01, 0x02
			So(merkle.LeafHash(lf), ShouldEqual, keccak(lf.Owner[:], score))
		})

		Convey("Then changing the score changes the digest", func() {
			other := lf
			other.Score++
			So(merkle.LeafHash(other), ShouldNotEqual, merkle.LeafHash(lf))
		})
	})
}

func TestBuild_TwoLeaves(t *testing.T) {
	Convey("Given the commitment {(A,100), (B,150)}", t, func() {
		a := model.ScoreLeaf{Owner: owner(0xA), Score: 100}
		b := model.ScoreLeaf{Owner: owner(0xB), Score: 150}
		c, err := merkle.Build(context.Background(), []model.ScoreLeaf{a, b})
		So(err, ShouldBeNil)

		Convey("Then the root is the sorted pair of the leaf digests", func() {
			ha, hb := merkle.LeafHash(a), merkle.LeafHash(b)
			lo, hi := ha, hb
			if string(hb[:]) < string(ha[:]) {
				lo, hi = hb, ha
			}
			So(c.Root(), ShouldEqual, keccak(lo[:], hi[:]))
		})

		Convey("Then A's proof is B's leaf digest alone", func() {
			p, err := c.Proof(a.Owner)
			So(err, ShouldBeNil)
			So(p, ShouldHaveLength, 1)
			So(p[0], ShouldEqual, merkle.LeafHash(b))
			So(merkle.Verify(a, p, c.Root()), ShouldBeTrue)
		})
	})
}

func TestBuild_RoundTrip(t *testing.T) {
	Convey("Given leaf sets of every size from 1 to 33", t, func() {
		for n := 1; n <= 33; n++ {
			set := leaves(n)
			c, err := merkle.Build(context.Background(), set)
			So(err, ShouldBeNil)
			So(c.Len(), ShouldEqual, n)

			for _, lf := range set {
				p, err := c.Proof(lf.Owner)
				So(err, ShouldBeNil)
				So(merkle.Verify(lf, p, c.Root()), ShouldBeTrue)
			}
		}
	})

	Convey("Given a single leaf", t, func() {
		lf := model.ScoreLeaf{Owner: owner(1), Score: 42}
		c, err := merkle.Build(context.Background(), []model.ScoreLeaf{lf})
		So(err, ShouldBeNil)

		Convey("Then the root is the leaf digest and the proof is empty", func() {
			So(c.Root(), ShouldEqual, merkle.LeafHash(lf))
			p, _ := c.Proof(lf.Owner)
			So(p, ShouldBeEmpty)
			So(merkle.Verify(lf, p, c.Root()), ShouldBeTrue)
		})
	})
}

func TestBuild_Canonical(t *testing.T) {
	Convey("Given the same leaves in different orders", t, func() {
		set := leaves(11)
		rev := make([]model.ScoreLeaf, len(set))
		for i, lf := range set {
			rev[len(set)-1-i] = lf
		}
		c1, err := merkle.Build(context.Background(), set)
		So(err, ShouldBeNil)
		c2, err := merkle.Build(context.Background(), rev)
		So(err, ShouldBeNil)

		Convey("Then the roots match", func() {
			So(c1.Root(), ShouldEqual, c2.Root())
			So(c1.Leaves(), ShouldResemble, c2.Leaves())
		})
	})

	Convey("Given a large set built in parallel", t, func() {
		set := leaves(3001)
		seq, err := merkle.Build(context.Background(), set, merkle.WithParallelThreshold(1<<30))
		So(err, ShouldBeNil)
		par, err := merkle.Build(context.Background(), set, merkle.WithParallelThreshold(2), merkle.WithWorkers(4))
		So(err, ShouldBeNil)

		Convey("Then it matches the sequential build", func() {
			So(par.Root(), ShouldEqual, seq.Root())
			p, _ := par.Proof(set[1234].Owner)
			So(merkle.Verify(set[1234], p, seq.Root()), ShouldBeTrue)
		})
	})
}

func TestVerify_Tamper(t *testing.T) {
	Convey("Given a committed set", t, func() {
		set := leaves(6)
		c, err := merkle.Build(context.Background(), set)
		So(err, ShouldBeNil)
		proofs := c.Proofs()

		Convey("When a leaf's score is changed", func() {
			forged := set[2]
			forged.Score += 1

			Convey("Then its old proof no longer verifies", func() {
				So(merkle.Verify(forged, proofs[forged.Owner], c.Root()), ShouldBeFalse)
			})

			Convey("Then the old proof fails against the rebuilt root too", func() {
				mutated := append([]model.ScoreLeaf(nil), set...)
				mutated[2] = forged
				c2, err := merkle.Build(context.Background(), mutated)
				So(err, ShouldBeNil)
				So(c2.Root(), ShouldNotEqual, c.Root())
				So(merkle.Verify(set[2], proofs[set[2].Owner], c2.Root()), ShouldBeFalse)
			})
		})

		Convey("When a leaf is checked against the wrong proof", func() {
			So(merkle.Verify(set[0], proofs[set[1].Owner], c.Root()), ShouldBeFalse)
		})

		Convey("When a proof is truncated", func() {
			p := proofs[set[0].Owner]
			So(merkle.Verify(set[0], p[:len(p)-1], c.Root()), ShouldBeFalse)
		})

		Convey("When a leaf is not in the set", func() {
			_, err := c.Proof(owner(999))
			So(errors.Is(err, merkle.ErrLeafNotFound), ShouldBeTrue)
		})
	})
}

func TestVerifyAll(t *testing.T) {
	Convey("Given a batch of leaves and proofs", t, func() {
		ctx := context.Background()
		set := leaves(9)
		c, _ := merkle.Build(ctx, set)
		proofs := make([]merkle.Proof, len(set))
		for i, lf := range set {
			proofs[i], _ = c.Proof(lf.Owner)
		}

		Convey("Then a valid batch reports no failure", func() {
			bad, err := merkle.VerifyAll(ctx, set, proofs, c.Root(), merkle.WithParallelThreshold(1))
			So(err, ShouldBeNil)
			So(bad, ShouldEqual, -1)
		})

		Convey("Then the first bad index is reported", func() {
			set[5].Score = 1
			set[7].Score = 1
			bad, err := merkle.VerifyAll(ctx, set, proofs, c.Root())
			So(err, ShouldBeNil)
			So(bad, ShouldEqual, 5)
		})

		Convey("Then mismatched lengths are rejected", func() {
			_, err := merkle.VerifyAll(ctx, set, proofs[:3], c.Root())
			So(errors.Is(err, merkle.ErrLengthMismatch), ShouldBeTrue)
		})
	})
}

func TestBuild_Errors(t *testing.T) {
	Convey("Given invalid leaf sets", t, func() {
		ctx := context.Background()

		Convey("Then an empty set is rejected", func() {
			_, err := merkle.Build(ctx, nil)
			So(errors.Is(err, merkle.ErrEmptyLeafSet), ShouldBeTrue)
		})

		Convey("Then a repeated owner is rejected", func() {
			set := leaves(3)
			set = append(set, model.ScoreLeaf{Owner: set[0].Owner, Score: 1})
			_, err := merkle.Build(ctx, set)
			So(errors.Is(err, merkle.ErrDuplicateLeaf), ShouldBeTrue)
		})

		Convey("Then a cancelled context aborts a parallel build", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := merkle.Build(cctx, leaves(64), merkle.WithParallelThreshold(1))
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestHashText(t *testing.T) {
	Convey("Given a digest", t, func() {
		h := merkle.LeafHash(model.ScoreLeaf{Owner: owner(3), Score: 9})

		Convey("Then it round-trips through text", func() {
			b, err := h.MarshalText()
			So(err, ShouldBeNil)
			var back merkle.Hash
			So(back.UnmarshalText(b), ShouldBeNil)
			So(back, ShouldEqual, h)
		})

		Convey("Then malformed text is rejected", func() {
			_, err := merkle.ParseHash(fmt.Sprintf("0x%s", "ab"))
			So(errors.Is(err, merkle.ErrInvalidHash), ShouldBeTrue)
		})
	})
}
