// Package cmd defines and implements the CLI commands for the legiscrawl
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	appconfig "github.com/blur702/legiscrawl/internal/config"
	"github.com/blur702/legiscrawl/internal/logging"
	"github.com/blur702/legiscrawl/pkg/config"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legiscrawl",
		Short: "Supervised parallel scraper for legislator websites",
		Long: `legiscrawl runs a fixed pool of worker processes that scrape the public
websites of state legislators. A supervisor process partitions the roster
across workers, watches their heartbeats, and restarts the ones that die.
Progress is checkpointed to disk so a restarted worker resumes where its
predecessor stopped instead of re-fetching finished sites.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
		config.InitConfig()
	})

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/legiscrawl/, $HOME/.legiscrawl)")

	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newWorkerCmd())
	cmd.AddCommand(newInstallTaskCmd())

	return cmd
}

// loadConfig builds the typed configuration from the global Viper state.
func loadConfig() (appconfig.Config, error) {
	return appconfig.Load(viper.GetViper())
}

// buildLogger constructs the process logger from configuration.
func buildLogger() (*zap.Logger, error) {
	return logging.New(viper.GetBool("logging.development"))
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
