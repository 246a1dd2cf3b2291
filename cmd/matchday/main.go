package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/matchday/internal/adapters/http/api"
	"github.com/okian/matchday/internal/adapters/http/swagger"
	oracleadapter "github.com/okian/matchday/internal/adapters/oracle"
	"github.com/okian/matchday/internal/adapters/registry"
	"github.com/okian/matchday/internal/adapters/scheduler"
	"github.com/okian/matchday/internal/adapters/storage/sqlite"
	service "github.com/okian/matchday/internal/app"
	"github.com/okian/matchday/internal/config"
	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/pkg/logger"
	"github.com/okian/matchday/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// A missing .env is fine; the environment and config file still apply.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Stderr.WriteString("failed to read .env: " + err.Error() + "\n")
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "matchday exited", logger.Error(err))
	}
}

func run(ctx context.Context) error {
	lg := logger.Get()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		lg.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	app, err := build(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer app.close(context.Background())

	if err := app.svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	if app.sched != nil {
		if err := app.sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	go startServiceMetricsUpdater(ctx, app.svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		lg.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	lg.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	lg.Info(ctx, "server stopped")
	return nil
}

// application is the wired process.
type application struct {
	svc    *service.Service
	sched  *scheduler.Scheduler
	store  *sqlite.Store
	mux    *http.ServeMux
	logger logger.Logger
}

func build(ctx context.Context, cfg *config.Config, lg logger.Logger) (*application, error) {
	reg := registry.NewRegistry()
	book := registry.NewStatsBook()
	if f := cfg.Registry.PlayersFile; f != "" {
		n, err := registry.LoadPlayers(f, reg)
		if err != nil {
			return nil, err
		}
		lg.Info(ctx, "players loaded", logger.String("file", f), logger.Int("count", n))
	}
	if f := cfg.Registry.StatsFile; f != "" {
		n, err := registry.LoadStats(f, book)
		if err != nil {
			return nil, err
		}
		lg.Info(ctx, "stats loaded", logger.String("file", f), logger.Int("count", n))
	}

	opts := []service.Option{
		service.WithLogger(lg.Named("service")),
		service.WithLimits(cfg.Roster),
		service.WithRules(cfg.Scoring),
		service.WithOracleParams(cfg.Oracle),
		service.WithQueueSize(cfg.QueueSize),
		service.WithSnapshotInterval(cfg.SnapshotInterval),
		service.WithMerkleOptions(
			merkle.WithWorkers(cfg.Commitment.Workers),
			merkle.WithParallelThreshold(cfg.Commitment.ParallelThreshold),
		),
	}

	app := &application{logger: lg}
	if path := cfg.Storage.SQLitePath; path != "" {
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		app.store = store
		opts = append(opts, service.WithRecords(store))
		lg.Info(ctx, "settlement records in sqlite", logger.String("path", path))
	}

	board := oracleadapter.NewMemory(oracleadapter.WithLogger(lg.Named("oracle")))
	app.svc = service.New(reg, book, board, opts...)

	if cfg.Schedule.Enabled {
		sched, err := scheduler.New(app.svc, scheduler.Config{
			StartCron: cfg.Schedule.StartCron,
			EndCron:   cfg.Schedule.EndCron,
			Timezone:  cfg.Schedule.Timezone,
		}, scheduler.WithLogger(lg.Named("scheduler")))
		if err != nil {
			app.close(ctx)
			return nil, err
		}
		app.sched = sched
	}

	app.mux = http.NewServeMux()
	swagger.Register(app.mux)
	api.NewServer(app.svc,
		api.WithPlayers(reg),
		api.WithOracleBoard(board),
		api.WithMaxLimit(cfg.MaxStandingsLimit),
	).Register(app.mux)
	return app, nil
}

func (a *application) close(ctx context.Context) {
	if a.sched != nil {
		if err := a.sched.Stop(); err != nil {
			a.logger.Warn(ctx, "scheduler stop failed", logger.Error(err))
		}
	}
	a.svc.Stop(ctx)
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn(ctx, "sqlite close failed", logger.Error(err))
		}
	}
}

// startServiceMetricsUpdater refreshes gauges derived from service state.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

func updateServiceMetrics(ctx context.Context, svc *service.Service) {
	stats := svc.GetStats(ctx)
	if n, ok := stats["squads"].(int); ok {
		metrics.UpdateActiveSquads(n)
	}
	if n, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(n)
	}
	if p, ok := stats["period"].(uint64); ok {
		metrics.UpdateCurrentPeriod(p)
	}
}
