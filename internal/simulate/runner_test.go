package simulate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/matchday/internal/adapters/http/api"
	oracleadapter "github.com/okian/matchday/internal/adapters/oracle"
	"github.com/okian/matchday/internal/adapters/registry"
	service "github.com/okian/matchday/internal/app"
	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/oracle"
	"github.com/okian/matchday/internal/simulate"
	"github.com/okian/matchday/pkg/logger"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := registry.NewRegistry()
	for id := model.PlayerID(1); id <= 30; id++ {
		pos := model.Forward
		switch {
		case id <= 4:
			pos = model.Goalkeeper
		case id <= 14:
			pos = model.Defender
		case id <= 24:
			pos = model.Midfielder
		}
		p := model.Player{ID: id, Name: "Player", Position: pos, TeamID: model.TeamID((id-1)%10 + 1), Price: 60}
		if err := reg.Put(p); err != nil {
			t.Fatalf("put player: %v", err)
		}
	}
	book := registry.NewStatsBook()
	for period := uint64(1); period <= 2; period++ {
		for id := model.PlayerID(1); id <= 30; id++ {
			book.Put(period, id, model.MatchStats{Played: true, Goals: uint32(id+model.PlayerID(period)) % 3})
		}
	}

	mem := oracleadapter.NewMemory()
	svc := service.New(reg, book, mem,
		service.WithLogger(logger.NewNop()),
		service.WithOracleParams(oracle.Params{Timeout: 50 * time.Millisecond, MinBond: 1}),
	)
	mux := http.NewServeMux()
	api.NewServer(svc, api.WithPlayers(reg), api.WithOracleBoard(mem)).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop(context.Background())
	})
	return srv
}

func TestRun(t *testing.T) {
	Convey("Given a running matchday service", t, func() {
		srv := newServer(t)
		cfg := &simulate.Config{
			BaseURL:       srv.URL,
			Squads:        4,
			Periods:       2,
			Workers:       2,
			PollInterval:  20 * time.Millisecond,
			SettleTimeout: 5 * time.Second,
			Seed:          42,
		}

		Convey("A full season settles every squad in every period", func() {
			stats, err := simulate.Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			So(stats.SquadsCreated, ShouldEqual, 4)
			So(stats.SquadsFailed, ShouldEqual, 0)
			So(stats.PeriodsCommitted, ShouldEqual, 2)
			So(stats.PeriodsSettled, ShouldEqual, 2)
			So(stats.LeavesApplied, ShouldEqual, 8)
			So(stats.LeavesSkipped, ShouldEqual, 0)
			So(stats.StandingsChecked, ShouldEqual, 4)
		})
	})

	Convey("Given no service", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		Convey("Run fails the health check", func() {
			_, err := simulate.Run(context.Background(), &simulate.Config{BaseURL: srv.URL, Squads: 1, Periods: 1, Timeout: time.Second})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")
		})
	})
}
