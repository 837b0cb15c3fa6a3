// Package config is responsible for initializing the application's configuration.
// It uses the Viper library to read settings from a config file, environment
// variables, and command-line flags, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and enables
// reading from environment variables. This function is designed to be called
// once at application startup.
func InitConfig() {
	// --- Set Search Paths ---
	viper.SetConfigName("config")
	viper.AddConfigPath(".")                  // Current working directory
	viper.AddConfigPath("/etc/legiscrawl/")   // System-wide configuration
	viper.AddConfigPath("$HOME/.legiscrawl")  // User-specific configuration

	// --- Set Defaults ---
	viper.SetDefault("pool.worker_count", 20)
	viper.SetDefault("pool.heartbeat_timeout", "300s")
	viper.SetDefault("pool.heartbeat_interval", "15s")
	viper.SetDefault("pool.supervision_interval", "10s")
	viper.SetDefault("pool.max_restarts_per_worker", 3)
	viper.SetDefault("pool.stop_grace_period", "30s")

	viper.SetDefault("scrape.request_delay", "2s")
	viper.SetDefault("scrape.request_timeout", "15s")
	viper.SetDefault("scrape.max_pages_per_member", 10)
	viper.SetDefault("scrape.user_agent", "legiscrawl/1.0 (+https://github.com/blur702/legiscrawl)")

	viper.SetDefault("checkpoint.interval", 5)

	viper.SetDefault("state.root_dir", "data/state")
	viper.SetDefault("roster.path", "data/roster.json")

	viper.SetDefault("sink.kind", "filesystem")
	viper.SetDefault("sink.output_dir", "data/extracted")
	viper.SetDefault("sink.table", "legislator_documents")

	viper.SetDefault("server.enabled", true)
	viper.SetDefault("server.port", 8642)

	viper.SetDefault("logging.development", false)

	// --- Environment Variables ---
	viper.SetEnvPrefix("LEGISCRAWL") // e.g., LEGISCRAWL_POOL_WORKER_COUNT=8
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// --- Read Config File ---
	// A missing config file is fine; defaults and environment variables
	// carry the run. Parse errors surface later when the typed config is
	// loaded and validated.
	_ = viper.ReadInConfig()
}
