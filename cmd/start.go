package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/blur702/legiscrawl/internal/api"
	"github.com/blur702/legiscrawl/internal/clock/system"
	"github.com/blur702/legiscrawl/internal/metrics"
	"github.com/blur702/legiscrawl/internal/supervisor"
)

// newStartCmd creates the 'start' subcommand. It runs the supervisor in the
// foreground until the roster is exhausted or the process is signaled.
func newStartCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a supervised scraping run",
		Long: `Launches the worker pool and supervises it until every assigned site has
been scraped or the run is stopped. Exactly one run can be active per state
directory; a second start against a live run reports the existing run
instead of spawning another pool.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if workers > 0 {
				viper.Set("pool.worker_count", workers)
			}
			return runStart(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "override pool.worker_count for this run")
	return cmd
}

func runStart(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	launcher := &supervisor.ExecLauncher{ConfigFile: cfgFile}
	sup := supervisor.New(cfg, launcher, system.Clock{}, logger)

	if cfg.Server.Enabled {
		server := api.NewServer(
			func() (supervisor.Report, error) { return supervisor.Status(cfg, system.Clock{}) },
			func() (supervisor.CheckResult, error) { return supervisor.Check(cfg, system.Clock{}) },
			logger,
		)
		go func() {
			if err := server.ListenAndServe(ctx, cfg.Server.Port); err != nil {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
	}

	if err := sup.Run(ctx); err != nil {
		if errors.Is(err, supervisor.ErrRunActive) {
			// Idempotent start: report the existing run instead of
			// double-spawning.
			report, statusErr := supervisor.Status(cfg, system.Clock{})
			if statusErr != nil {
				return err
			}
			logger.Info("run already active",
				zap.String("run_id", report.RunID),
				zap.String("health", string(report.Health)),
				zap.Int("completed", report.CompletedUnits),
				zap.Int("total", report.TotalUnits),
			)
			return nil
		}
		return err
	}
	return nil
}
