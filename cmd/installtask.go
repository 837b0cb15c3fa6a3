package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// newInstallTaskCmd creates the 'install-task' subcommand. It emits a cron
// entry that polls 'legiscrawl check' so a dead run gets noticed without a
// human watching the terminal.
func newInstallTaskCmd() *cobra.Command {
	var (
		every int
		write string
	)

	cmd := &cobra.Command{
		Use:   "install-task",
		Short: "Emit a cron entry that polls run health",
		Long: `Prints a crontab line that runs 'legiscrawl check' on a schedule. The
check exits non-zero when the run is dead, which cron reports through its
usual mail or logging channel. Use --write to append the line to a file
instead of printing it (for /etc/cron.d installs).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if every < 1 || every > 59 {
				return fmt.Errorf("--every must be between 1 and 59 minutes, got %d", every)
			}
			self, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve own executable: %w", err)
			}
			self, err = filepath.Abs(self)
			if err != nil {
				return fmt.Errorf("resolve absolute path: %w", err)
			}

			line := fmt.Sprintf("*/%d * * * * %s check", every, self)
			if cfgFile != "" {
				line += " --config " + cfgFile
			}
			line += "\n"

			if write == "" {
				fmt.Fprint(cmd.OutOrStdout(), line)
				return nil
			}
			f, err := os.OpenFile(write, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("open %s: %w", write, err)
			}
			defer f.Close()
			if _, err := f.WriteString(line); err != nil {
				return fmt.Errorf("write %s: %w", write, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed check task in %s\n", write)
			return nil
		},
	}
	cmd.Flags().IntVar(&every, "every", 5, "poll interval in minutes")
	cmd.Flags().StringVar(&write, "write", "", "append the entry to this file instead of printing")
	return cmd
}
