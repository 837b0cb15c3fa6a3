package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blur702/legiscrawl/internal/clock/system"
	"github.com/blur702/legiscrawl/internal/state"
	"github.com/blur702/legiscrawl/internal/supervisor"
)

// newCheckCmd creates the 'check' subcommand. It is the verb schedulers
// poll: cheap, side-effect free, and with an exit code that reflects health.
func newCheckCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Classify worker liveness without touching the run",
		Long: `Applies the supervisor's staleness rule to the current heartbeats and
reports each worker as alive, stale, done, or failed. Performs no restarts
and no writes. Exits non-zero when the run is dead, so cron or systemd
timers can alert on it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			result, err := supervisor.Check(cfg, system.Clock{})
			if err != nil {
				if errors.Is(err, state.ErrNoRun) {
					return fmt.Errorf("no run found in %s", cfg.State.RootDir)
				}
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "run %s  health=%s  active=%t\n", result.RunID, result.Health, result.Active)
				for i := 0; i < len(result.Workers); i++ {
					fmt.Fprintf(out, "worker %d: %s\n", i, result.Workers[i])
				}
			}

			if result.Health == supervisor.HealthDead {
				return fmt.Errorf("run %s is dead: no worker is making progress", result.RunID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the result as JSON")
	return cmd
}
