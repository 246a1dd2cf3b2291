package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/smartystreets/goconvey/convey"

	oracleadapter "github.com/okian/matchday/internal/adapters/oracle"
	"github.com/okian/matchday/internal/adapters/registry"
	service "github.com/okian/matchday/internal/app"
	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/oracle"
	"github.com/okian/matchday/internal/domain/roster"
	"github.com/okian/matchday/pkg/logger"
)

var (
	alice = model.MustOwner("0x00000000000000000000000000000000000000a1")
	bob   = model.MustOwner("0x00000000000000000000000000000000000000b2")

	lineup = []model.PlayerID{1, 3, 4, 5, 8, 9, 10, 11, 13, 14, 15}
)

type harness struct {
	svc    *service.Service
	reg    *registry.Registry
	book   *registry.StatsBook
	oracle *oracleadapter.Memory
	clock  clockwork.FakeClock
}

func newHarness(t *testing.T, opts ...service.Option) *harness {
	t.Helper()
	reg := registry.NewRegistry()
	for id := model.PlayerID(1); id <= 15; id++ {
		pos := model.Forward
		switch {
		case id <= 2:
			pos = model.Goalkeeper
		case id <= 7:
			pos = model.Defender
		case id <= 12:
			pos = model.Midfielder
		}
		if err := reg.Put(model.Player{ID: id, Name: "Player", Position: pos, TeamID: model.TeamID(id), Price: 50}); err != nil {
			t.Fatalf("put player: %v", err)
		}
	}
	book := registry.NewStatsBook()
	book.Put(1, 13, model.MatchStats{Played: true, Goals: 2})
	book.Put(1, 3, model.MatchStats{Played: true, CleanSheets: 1})

	clock := clockwork.NewFakeClock()
	mem := oracleadapter.NewMemory(oracleadapter.WithClock(clock))

	opts = append([]service.Option{
		service.WithLogger(logger.NewNop()),
		service.WithSnapshotInterval(10 * time.Millisecond),
		service.WithOracleParams(oracle.Params{Timeout: time.Hour, MinBond: 1}),
	}, opts...)
	svc := service.New(reg, book, mem, opts...)
	t.Cleanup(func() { svc.Stop(context.Background()) })
	return &harness{svc: svc, reg: reg, book: book, oracle: mem, clock: clock}
}

func (h *harness) squad(t *testing.T, owner model.Owner, captain, vice model.PlayerID) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.svc.CreateSquad(ctx, owner); err != nil {
		t.Fatalf("create: %v", err)
	}
	for id := model.PlayerID(1); id <= 15; id++ {
		if _, err := h.svc.AddPlayer(ctx, owner, id); err != nil {
			t.Fatalf("add %d: %v", id, err)
		}
	}
	if _, err := h.svc.SetLineup(ctx, owner, lineup); err != nil {
		t.Fatalf("lineup: %v", err)
	}
	if _, err := h.svc.SetCaptain(ctx, owner, captain, vice); err != nil {
		t.Fatalf("captain: %v", err)
	}
}

// finalize answers period's question with root and lets the timeout pass.
func (h *harness) finalize(t *testing.T, period uint64, root merkle.Hash) {
	t.Helper()
	id, ok := h.svc.Question(period)
	if !ok {
		t.Fatalf("no question for period %d", period)
	}
	if err := h.oracle.SubmitAnswer(context.Background(), id, root, 1, "reporter"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	h.clock.Advance(2 * time.Hour)
}

func leavesAndProofs(c *merkle.Commitment) ([]model.ScoreLeaf, []merkle.Proof) {
	leaves := c.Leaves()
	proofs := make([]merkle.Proof, len(leaves))
	for i, lf := range leaves {
		proofs[i], _ = c.Proof(lf.Owner)
	}
	return leaves, proofs
}

func TestService_Squads(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service", t, func() {
		h := newHarness(t)

		Convey("CreateSquad joins the next period while idle and seeds the standings", func() {
			sq, err := h.svc.CreateSquad(ctx, alice)
			So(err, ShouldBeNil)
			So(sq.JoinedPeriod, ShouldEqual, 1)
			So(sq.Budget, ShouldEqual, 1000)

			entry, err := h.svc.Rank(ctx, alice)
			So(err, ShouldBeNil)
			So(entry.Points, ShouldEqual, 0)
		})

		Convey("CreateSquad joins the active period", func() {
			So(h.svc.StartPeriod(ctx, 3), ShouldBeNil)
			sq, err := h.svc.CreateSquad(ctx, alice)
			So(err, ShouldBeNil)
			So(sq.JoinedPeriod, ShouldEqual, 3)
		})

		Convey("Ledger errors pass through", func() {
			_, _ = h.svc.CreateSquad(ctx, alice)
			_, err := h.svc.CreateSquad(ctx, alice)
			So(errors.Is(err, roster.ErrAlreadyExists), ShouldBeTrue)

			_, err = h.svc.AddPlayer(ctx, alice, 99)
			So(errors.Is(err, roster.ErrUnknownPlayer), ShouldBeTrue)

			_, err = h.svc.SetLineup(ctx, alice, []model.PlayerID{1})
			So(errors.Is(err, roster.ErrArity), ShouldBeTrue)
		})

		Convey("Transfers and the wildcard return the updated squad", func() {
			h.squad(t, alice, 13, 3)
			So(h.reg.Put(model.Player{ID: 16, Name: "Sub", Position: model.Forward, TeamID: 16, Price: 50}), ShouldBeNil)

			sq, err := h.svc.Transfer(ctx, alice, 15, 16)
			So(err, ShouldBeNil)
			_, has := sq.Slot(16)
			So(has, ShouldBeTrue)
			So(sq.FreeTransfers, ShouldEqual, 1)

			sq, err = h.svc.UseWildcard(ctx, alice)
			So(err, ShouldBeNil)
			So(sq.WildcardUsed, ShouldBeTrue)

			sq, err = h.svc.RemovePlayer(ctx, alice, 16)
			So(err, ShouldBeNil)
			So(len(sq.Slots), ShouldEqual, 14)
		})
	})
}

func TestService_Commitments(t *testing.T) {
	ctx := context.Background()

	Convey("Given two squads with stats for period 1", t, func() {
		h := newHarness(t)
		h.squad(t, alice, 13, 3)
		h.squad(t, bob, 1, 3)
		So(h.svc.StartPeriod(ctx, 1), ShouldBeNil)

		Convey("BuildCommitment scores each squad", func() {
			c, err := h.svc.BuildCommitment(ctx, 1)
			So(err, ShouldBeNil)
			So(c.Len(), ShouldEqual, 2)

			// Alice's captain scored 2 goals; Bob's captain did not play so the
			// vice's clean sheet is doubled instead.
			a, _ := c.Leaf(alice)
			b, _ := c.Leaf(bob)
			So(a.Score, ShouldEqual, 2*4*2+4)
			So(b.Score, ShouldEqual, 2*4+4*2)

			leaf, proof, err := h.svc.Proof(1, alice)
			So(err, ShouldBeNil)
			So(merkle.Verify(leaf, proof, c.Root()), ShouldBeTrue)

			stored, err := h.svc.Commitment(1)
			So(err, ShouldBeNil)
			So(stored.Root(), ShouldResemble, c.Root())
		})

		Convey("Squads joining after the period are left out", func() {
			So(h.svc.EndPeriod(ctx, 1), ShouldBeNil)
			_, err := h.svc.CreateSquad(ctx, model.MustOwner("0x00000000000000000000000000000000000000c3"))
			So(err, ShouldBeNil)

			c, err := h.svc.BuildCommitment(ctx, 1)
			So(err, ShouldBeNil)
			So(c.Len(), ShouldEqual, 2)
		})

		Convey("A period without stats cannot be committed", func() {
			_, err := h.svc.BuildCommitment(ctx, 7)
			So(errors.Is(err, registry.ErrNoStats), ShouldBeTrue)
		})

		Convey("Missing commitments and leaves are reported", func() {
			_, err := h.svc.Commitment(1)
			So(errors.Is(err, service.ErrNoCommitment), ShouldBeTrue)

			_, _ = h.svc.BuildCommitment(ctx, 1)
			_, _, err = h.svc.Proof(1, model.MustOwner("0x00000000000000000000000000000000000000ff"))
			So(errors.Is(err, merkle.ErrLeafNotFound), ShouldBeTrue)
		})

		Convey("The commitment is sealed once the question is open", func() {
			_, err := h.svc.BuildCommitment(ctx, 1)
			So(err, ShouldBeNil)
			So(h.svc.EndPeriod(ctx, 1), ShouldBeNil)
			So(h.svc.StartPeriod(ctx, 2), ShouldBeNil)

			_, err = h.svc.BuildCommitment(ctx, 1)
			So(errors.Is(err, service.ErrCommitmentSealed), ShouldBeTrue)
		})
	})

	Convey("Given rebuilds of period 1 racing the start of period 2", t, func() {
		h := newHarness(t, service.WithMerkleOptions(merkle.WithWorkers(2), merkle.WithParallelThreshold(1)))
		h.squad(t, alice, 13, 3)
		h.squad(t, bob, 1, 3)
		So(h.svc.StartPeriod(ctx, 1), ShouldBeNil)
		_, err := h.svc.BuildCommitment(ctx, 1)
		So(err, ShouldBeNil)
		So(h.svc.EndPeriod(ctx, 1), ShouldBeNil)

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					if _, err := h.svc.BuildCommitment(ctx, 1); err != nil {
						errs[i] = err
						return
					}
				}
			}()
		}
		So(h.svc.StartPeriod(ctx, 2), ShouldBeNil)
		sealed, err := h.svc.Commitment(1)
		So(err, ShouldBeNil)
		wg.Wait()

		Convey("The commitment stored when the question opened is kept", func() {
			for _, err := range errs {
				So(errors.Is(err, service.ErrCommitmentSealed), ShouldBeTrue)
			}
			current, err := h.svc.Commitment(1)
			So(err, ShouldBeNil)
			So(current == sealed, ShouldBeTrue)
		})
	})
}

func TestService_GetStats(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		h := newHarness(t)
		So(h.svc.Start(ctx), ShouldBeNil)
		So(h.svc.Start(ctx), ShouldBeNil)
		_, _ = h.svc.CreateSquad(ctx, alice)

		stats := h.svc.GetStats(ctx)
		So(stats["started"], ShouldEqual, true)
		So(stats["squads"], ShouldEqual, 1)
		So(stats["phase"], ShouldEqual, "idle")
		So(stats["queueLength"], ShouldEqual, 0)
	})
}
