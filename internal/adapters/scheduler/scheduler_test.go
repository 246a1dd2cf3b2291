package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/matchday/internal/adapters/scheduler"
	"github.com/okian/matchday/internal/domain/settlement"
	"github.com/okian/matchday/pkg/logger"
)

type fakeLifecycle struct {
	mu     sync.Mutex
	phase  settlement.Phase
	period uint64
	calls  []string
	err    error
}

func (f *fakeLifecycle) State() (settlement.Phase, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase, f.period
}

func (f *fakeLifecycle) StartPeriod(_ context.Context, p uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start")
	if f.err != nil {
		return f.err
	}
	f.phase, f.period = settlement.Active, p
	return nil
}

func (f *fakeLifecycle) EndPeriod(_ context.Context, p uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "end")
	f.phase = settlement.Ended
	return nil
}

var weekly = scheduler.Config{StartCron: "0 12 * * 5", EndCron: "0 23 * * 1", Timezone: "Europe/London"}

func TestScheduler(t *testing.T) {
	ctx := context.Background()

	Convey("Given a scheduler over a fresh lifecycle", t, func() {
		lc := &fakeLifecycle{}
		sc, err := scheduler.New(lc, weekly, scheduler.WithLogger(logger.NewNop()))
		So(err, ShouldBeNil)

		Convey("StartNext starts period 1 from idle", func() {
			So(sc.StartNext(ctx), ShouldBeNil)
			phase, p := lc.State()
			So(phase, ShouldEqual, settlement.Active)
			So(p, ShouldEqual, 1)

			Convey("and does nothing while that period is active", func() {
				So(sc.StartNext(ctx), ShouldBeNil)
				So(len(lc.calls), ShouldEqual, 1)
			})

			Convey("EndCurrent then StartNext moves to period 2", func() {
				So(sc.EndCurrent(ctx), ShouldBeNil)
				So(sc.StartNext(ctx), ShouldBeNil)
				_, p := lc.State()
				So(p, ShouldEqual, 2)
				So(lc.calls, ShouldResemble, []string{"start", "end", "start"})
			})
		})

		Convey("EndCurrent without an active period is a no-op", func() {
			So(sc.EndCurrent(ctx), ShouldBeNil)
			So(lc.calls, ShouldBeEmpty)
		})

		Convey("Lifecycle errors are returned", func() {
			lc.err = settlement.ErrPeriodOrder
			So(errors.Is(sc.StartNext(ctx), settlement.ErrPeriodOrder), ShouldBeTrue)
		})

		Convey("Start and Stop register and release the jobs", func() {
			So(sc.Start(), ShouldBeNil)
			So(sc.Stop(), ShouldBeNil)
		})
	})

	Convey("Given bad configuration", t, func() {
		lc := &fakeLifecycle{}

		Convey("Missing crons are rejected", func() {
			_, err := scheduler.New(lc, scheduler.Config{StartCron: "0 12 * * 5"})
			So(errors.Is(err, scheduler.ErrNoSchedule), ShouldBeTrue)
		})

		Convey("An unknown timezone is rejected", func() {
			_, err := scheduler.New(lc, scheduler.Config{StartCron: "* * * * *", EndCron: "* * * * *", Timezone: "Nowhere/Town"})
			So(err, ShouldNotBeNil)
		})

		Convey("An invalid cron fails on Start", func() {
			sc, err := scheduler.New(lc, scheduler.Config{StartCron: "not a cron", EndCron: "* * * * *"})
			So(err, ShouldBeNil)
			So(sc.Start(), ShouldNotBeNil)
			_ = sc.Stop()
		})
	})
}
