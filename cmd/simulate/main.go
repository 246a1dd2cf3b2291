package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/matchday/internal/simulate"
	"github.com/okian/matchday/pkg/logger"
)

const (
	defaultSquads      = 50
	defaultPeriods     = 3
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 30 * time.Minute
	defaultPoll        = time.Second
	defaultSettleAfter = 2 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		squads   = flag.Int("squads", defaultSquads, "Number of squads to register")
		periods  = flag.Int("periods", defaultPeriods, "Number of periods to play and settle")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle   = flag.Duration("settle-timeout", defaultSettleAfter, "How long to wait for each oracle question to finalize")
		poll     = flag.Duration("poll", defaultPoll, "Delay between settlement attempts while the oracle is pending")
		answerer = flag.String("answerer", "simulator", "Name posted with oracle answers")
		seed     = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed for owners and squad selection")
		level    = flag.String("log-level", "info", "Log level")
		verbose  = flag.Bool("verbose", false, "Log every squad and period step")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose && *level == "info" {
		*level = "debug"
	}
	if err := logger.SetLevelString(*level); err != nil {
		os.Stderr.WriteString("Invalid log level: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:       *baseURL,
		Squads:        *squads,
		Periods:       *periods,
		Workers:       *workers,
		Timeout:       *timeout,
		SettleTimeout: *settle,
		PollInterval:  *poll,
		Answerer:      *answerer,
		Seed:          *seed,
		Verbose:       *verbose,
		Logger:        logger.Named("simulate"),
	}
	if _, err := simulate.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}
