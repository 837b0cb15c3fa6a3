package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blur702/legiscrawl/internal/clock/system"
	appconfig "github.com/blur702/legiscrawl/internal/config"
	"github.com/blur702/legiscrawl/internal/logging"
	"github.com/blur702/legiscrawl/internal/metrics"
	"github.com/blur702/legiscrawl/internal/ratelimit"
	"github.com/blur702/legiscrawl/internal/roster"
	"github.com/blur702/legiscrawl/internal/scrape"
	"github.com/blur702/legiscrawl/internal/state"
	"github.com/blur702/legiscrawl/internal/worker"
)

// newWorkerCmd creates the hidden 'worker' subcommand. The supervisor
// re-execs this binary with it; operators never run it by hand.
func newWorkerCmd() *cobra.Command {
	var (
		index    int
		runID    string
		restarts int
	)

	cmd := &cobra.Command{
		Use:    "worker",
		Hidden: true,
		Short:  "Run one worker slot (spawned by the supervisor)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runID == "" {
				return fmt.Errorf("--run-id is required")
			}
			return runWorker(cmd.Context(), index, runID, restarts)
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "worker slot index")
	cmd.Flags().StringVar(&runID, "run-id", "", "run this worker belongs to")
	cmd.Flags().IntVar(&restarts, "restarts", 0, "how many times this slot has been restarted")
	return cmd
}

func runWorker(parent context.Context, index int, runID string, restarts int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if index < 0 || index >= cfg.Pool.WorkerCount {
		return fmt.Errorf("worker index %d out of range for pool of %d", index, cfg.Pool.WorkerCount)
	}

	base, err := buildLogger()
	if err != nil {
		return err
	}
	defer func() { _ = base.Sync() }()
	logger := logging.ForWorker(base, index)

	metrics.Init()

	members, err := roster.Load(cfg.Roster.Path)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	clock := system.Clock{}
	checkpoints := state.NewCheckpointStore(cfg.State.RootDir, runID, cfg.Checkpoint.Interval, clock)
	heartbeats := state.NewHeartbeatStore(cfg.State.RootDir, runID, clock)
	limiter := ratelimit.New(cfg.Scrape.RequestDelay)
	extractor := scrape.NewCollyExtractor(scrape.CollyConfig{
		UserAgent:      cfg.Scrape.UserAgent,
		RequestTimeout: cfg.Scrape.RequestTimeout,
		MaxPages:       cfg.Scrape.MaxPagesPerMember,
	}, clock, logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	sink, err := buildSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closer, ok := sink.(interface{ Close() }); ok {
		defer closer.Close()
	}

	w := worker.New(
		worker.Config{
			Index:             index,
			WorkerCount:       cfg.Pool.WorkerCount,
			RunID:             runID,
			PID:               os.Getpid(),
			RestartCount:      restarts,
			RequestTimeout:    cfg.Scrape.RequestTimeout,
			HeartbeatInterval: cfg.Pool.HeartbeatInterval,
		},
		members,
		checkpoints,
		heartbeats,
		limiter,
		extractor,
		sink,
		logger,
	)
	return w.Run(ctx)
}

func buildSink(ctx context.Context, cfg appconfig.Config, logger *zap.Logger) (scrape.Sink, error) {
	switch cfg.Sink.Kind {
	case "postgres":
		return scrape.NewPostgresSink(ctx, scrape.PostgresSinkConfig{
			DSN:   cfg.Sink.DSN,
			Table: cfg.Sink.Table,
		})
	default:
		return scrape.NewFileSystemSink(cfg.Sink.OutputDir, logger)
	}
}
