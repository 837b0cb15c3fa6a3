package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blur702/legiscrawl/internal/supervisor"
)

// newStopCmd creates the 'stop' subcommand.
func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the active run gracefully",
		Long: `Signals the running supervisor to drain its workers. Each worker finishes
its in-flight site, checkpoints, and exits; workers that ignore the signal
past the grace period are killed. Checkpoints and heartbeats are kept so the
roster can be resumed by a later run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := buildLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if err := supervisor.StopRun(cfg, logger); err != nil {
				if errors.Is(err, supervisor.ErrNoActiveRun) {
					return fmt.Errorf("no active run in %s", cfg.State.RootDir)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "run stopped")
			return nil
		},
	}
}
