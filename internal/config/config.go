// Package config loads and validates pool configuration via Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Pool       PoolConfig       `mapstructure:"pool"`
	Scrape     ScrapeConfig     `mapstructure:"scrape"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	State      StateConfig      `mapstructure:"state"`
	Roster     RosterConfig     `mapstructure:"roster"`
	Sink       SinkConfig       `mapstructure:"sink"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PoolConfig governs supervision and restart behavior.
type PoolConfig struct {
	WorkerCount          int           `mapstructure:"worker_count"`
	HeartbeatTimeout     time.Duration `mapstructure:"heartbeat_timeout"`
	HeartbeatInterval    time.Duration `mapstructure:"heartbeat_interval"`
	SupervisionInterval  time.Duration `mapstructure:"supervision_interval"`
	MaxRestartsPerWorker int           `mapstructure:"max_restarts_per_worker"`
	StopGracePeriod      time.Duration `mapstructure:"stop_grace_period"`
}

// ScrapeConfig governs the per-worker fetch pipeline.
type ScrapeConfig struct {
	RequestDelay      time.Duration `mapstructure:"request_delay"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	MaxPagesPerMember int           `mapstructure:"max_pages_per_member"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// CheckpointConfig controls progress durability cadence.
type CheckpointConfig struct {
	// Interval is the number of completed units between checkpoint
	// flushes. Larger values mean less I/O and more redone work after a
	// crash.
	Interval int `mapstructure:"interval"`
}

// StateConfig locates the durable coordination records.
type StateConfig struct {
	RootDir string `mapstructure:"root_dir"`
}

// RosterConfig locates the work list.
type RosterConfig struct {
	Path string `mapstructure:"path"`
}

// SinkConfig selects and configures the output sink.
type SinkConfig struct {
	Kind      string `mapstructure:"kind"` // "filesystem" or "postgres"
	OutputDir string `mapstructure:"output_dir"`
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
}

// ServerConfig controls the supervisor's status HTTP endpoint.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from the global Viper state.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pool cannot run with.
func (c Config) Validate() error {
	if c.Pool.WorkerCount < 1 {
		return fmt.Errorf("pool.worker_count must be >= 1, got %d", c.Pool.WorkerCount)
	}
	if c.Pool.HeartbeatTimeout <= 0 {
		return fmt.Errorf("pool.heartbeat_timeout must be positive")
	}
	if c.Pool.HeartbeatInterval <= 0 {
		return fmt.Errorf("pool.heartbeat_interval must be positive")
	}
	if c.Pool.HeartbeatInterval >= c.Pool.HeartbeatTimeout {
		return fmt.Errorf("pool.heartbeat_interval (%s) must be shorter than pool.heartbeat_timeout (%s)",
			c.Pool.HeartbeatInterval, c.Pool.HeartbeatTimeout)
	}
	if c.Pool.SupervisionInterval <= 0 {
		return fmt.Errorf("pool.supervision_interval must be positive")
	}
	if c.Pool.MaxRestartsPerWorker < 0 {
		return fmt.Errorf("pool.max_restarts_per_worker must be >= 0")
	}
	if c.Scrape.RequestDelay < 0 {
		return fmt.Errorf("scrape.request_delay must be >= 0")
	}
	if c.Checkpoint.Interval < 1 {
		return fmt.Errorf("checkpoint.interval must be >= 1, got %d", c.Checkpoint.Interval)
	}
	if c.State.RootDir == "" {
		return fmt.Errorf("state.root_dir is required")
	}
	if c.Roster.Path == "" {
		return fmt.Errorf("roster.path is required")
	}
	switch c.Sink.Kind {
	case "filesystem":
		if c.Sink.OutputDir == "" {
			return fmt.Errorf("sink.output_dir is required for the filesystem sink")
		}
	case "postgres":
		if c.Sink.DSN == "" {
			return fmt.Errorf("sink.dsn is required for the postgres sink")
		}
	default:
		return fmt.Errorf("unknown sink.kind %q", c.Sink.Kind)
	}
	return nil
}
