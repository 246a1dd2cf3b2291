package oracle_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/matchday/internal/adapters/oracle"
	"github.com/okian/matchday/internal/domain/merkle"
	domain "github.com/okian/matchday/internal/domain/oracle"
	. "github.com/smartystreets/goconvey/convey"
)

func root(b byte) merkle.Hash {
	var h merkle.Hash
	h[0] = b
	return h
}

func TestMemory(t *testing.T) {
	Convey("Given an oracle on a fake clock", t, func() {
		ctx := context.Background()
		clock := clockwork.NewFakeClock()
		m := oracle.NewMemory(oracle.WithClock(clock))
		id, err := m.Ask(ctx, domain.Question{Period: 4, Prompt: "root?", Timeout: time.Hour, MinBond: 10})
		So(err, ShouldBeNil)
		So(id, ShouldNotBeEmpty)

		Convey("When nobody has answered", func() {
			clock.Advance(48 * time.Hour)
			res, err := m.Result(ctx, id)

			Convey("Then the question stays pending", func() {
				So(err, ShouldBeNil)
				So(res.State, ShouldEqual, domain.Pending)
			})
		})

		Convey("When an answer is posted", func() {
			So(m.SubmitAnswer(ctx, id, root(1), 10, "alice"), ShouldBeNil)

			Convey("Then it is pending until the timeout passes", func() {
				clock.Advance(59 * time.Minute)
				res, _ := m.Result(ctx, id)
				So(res.State, ShouldEqual, domain.Pending)

				clock.Advance(time.Minute)
				res, _ = m.Result(ctx, id)
				So(res.State, ShouldEqual, domain.Finalized)
				So(res.Root, ShouldEqual, root(1))
			})

			Convey("Then a challenge must double the bond", func() {
				err := m.SubmitAnswer(ctx, id, root(2), 19, "bob")
				So(errors.Is(err, oracle.ErrBondTooLow), ShouldBeTrue)
				So(m.SubmitAnswer(ctx, id, root(2), 20, "bob"), ShouldBeNil)
			})

			Convey("Then a challenge restarts the timeout", func() {
				clock.Advance(30 * time.Minute)
				So(m.SubmitAnswer(ctx, id, root(2), 20, "bob"), ShouldBeNil)
				clock.Advance(45 * time.Minute)
				res, _ := m.Result(ctx, id)
				So(res.State, ShouldEqual, domain.Pending)

				clock.Advance(15 * time.Minute)
				res, _ = m.Result(ctx, id)
				So(res.State, ShouldEqual, domain.Finalized)
				So(res.Root, ShouldEqual, root(2))

				info, err := m.Question(id)
				So(err, ShouldBeNil)
				So(info.Answers, ShouldHaveLength, 2)
				So(info.State, ShouldEqual, domain.Finalized)
			})

			Convey("Then answers after finalization are refused", func() {
				clock.Advance(time.Hour)
				err := m.SubmitAnswer(ctx, id, root(3), 100, "carol")
				So(errors.Is(err, oracle.ErrFinalized), ShouldBeTrue)
			})
		})

		Convey("When the first bond is below the minimum", func() {
			So(errors.Is(m.SubmitAnswer(ctx, id, root(1), 9, "alice"), oracle.ErrBondTooLow), ShouldBeTrue)
		})

		Convey("When the answer is empty", func() {
			So(errors.Is(m.SubmitAnswer(ctx, id, merkle.Hash{}, 10, "alice"), oracle.ErrEmptyAnswer), ShouldBeTrue)
		})

		Convey("When the question is unknown", func() {
			_, err := m.Result(ctx, "nope")
			So(errors.Is(err, oracle.ErrUnknownQuestion), ShouldBeTrue)
			So(errors.Is(m.SubmitAnswer(ctx, "nope", root(1), 10, "x"), oracle.ErrUnknownQuestion), ShouldBeTrue)
		})

		Convey("When a bond above half the integer range was posted", func() {
			So(m.SubmitAnswer(ctx, id, root(1), math.MaxUint64/2+1, "alice"), ShouldBeNil)

			Convey("Then no smaller bond can replace it", func() {
				err := m.SubmitAnswer(ctx, id, root(2), 1, "bob")
				So(errors.Is(err, oracle.ErrBondTooLow), ShouldBeTrue)
				err = m.SubmitAnswer(ctx, id, root(2), math.MaxUint64, "bob")
				So(errors.Is(err, oracle.ErrBondTooLow), ShouldBeTrue)

				clock.Advance(time.Hour)
				res, _ := m.Result(ctx, id)
				So(res.State, ShouldEqual, domain.Finalized)
				So(res.Root, ShouldEqual, root(1))
			})
		})

		Convey("When asking with a zero minimum bond", func() {
			_, err := m.Ask(ctx, domain.Question{Period: 6, Timeout: time.Hour})
			So(errors.Is(err, oracle.ErrInvalidMinBond), ShouldBeTrue)
		})

		Convey("When asking without a timeout", func() {
			_, err := m.Ask(ctx, domain.Question{Period: 5})
			So(errors.Is(err, oracle.ErrInvalidTimeout), ShouldBeTrue)
		})

		Convey("When listing questions", func() {
			_, err := m.Ask(ctx, domain.Question{Period: 2, Timeout: time.Minute, MinBond: 1})
			So(err, ShouldBeNil)
			qs := m.Questions()
			So(qs, ShouldHaveLength, 2)
			So(qs[0].Period, ShouldEqual, 2)
			So(qs[1].Period, ShouldEqual, 4)
		})
	})
}

func TestMemory_ThroughGateway(t *testing.T) {
	Convey("Given a gateway backed by the memory oracle", t, func() {
		ctx := context.Background()
		clock := clockwork.NewFakeClock()
		m := oracle.NewMemory(oracle.WithClock(clock))
		g := domain.NewGateway(m, domain.WithParams(domain.Params{Arbitrator: "0xarb", Timeout: time.Hour, MinBond: 1}))

		id, err := g.OpenQuestion(ctx, 3, "")
		So(err, ShouldBeNil)

		Convey("Then configuration is passed through unchanged", func() {
			info, err := m.Question(id)
			So(err, ShouldBeNil)
			So(info.Arbitrator, ShouldEqual, "0xarb")
			So(info.Timeout, ShouldEqual, time.Hour)
			So(info.MinBond, ShouldEqual, 1)
			So(info.Prompt, ShouldContainSubstring, "period 3")
		})

		Convey("Then the finalized root is visible through the gateway", func() {
			So(m.SubmitAnswer(ctx, id, root(9), 1, "reporter"), ShouldBeNil)
			res, err := g.ResolvedRoot(ctx, id)
			So(err, ShouldBeNil)
			So(res.State, ShouldEqual, domain.Pending)

			clock.Advance(time.Hour)
			res, err = g.ResolvedRoot(ctx, id)
			So(err, ShouldBeNil)
			So(res.State, ShouldEqual, domain.Finalized)
			So(res.Root, ShouldEqual, root(9))
		})
	})
}
