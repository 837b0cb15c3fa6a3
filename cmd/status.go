package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blur702/legiscrawl/internal/clock/system"
	"github.com/blur702/legiscrawl/internal/state"
	"github.com/blur702/legiscrawl/internal/supervisor"
)

// newStatusCmd creates the 'status' subcommand.
func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show progress and health of the current run",
		Long: `Reads the durable run state, heartbeats, and checkpoints and prints a
per-worker progress report. Works whether or not the supervisor is running,
and never modifies anything.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			report, err := supervisor.Status(cfg, system.Clock{})
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
				return enc.Encode(report)
			}

			fmt.Fprintf(out, "run %s  health=%s  active=%t\n", report.RunID, report.Health, report.Active)
			fmt.Fprintf(out, "progress %d/%d completed, %d failed\n\n",
				report.CompletedUnits, report.TotalUnits, report.FailedUnits)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WORKER\tSTATE\tPID\tRESTARTS\tDONE/ASSIGNED\tFAILED\tCURRENT")
			for _, wr := range report.Workers {
				stateCol := wr.State
				if wr.Stale {
					stateCol += " (stale)"
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d/%d\t%d\t%s\n",
					wr.Index, stateCol, wr.PID, wr.RestartCount,
					wr.Completed, wr.Assigned, wr.Failed, wr.CurrentUnitID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the report as JSON")
	return cmd
}
