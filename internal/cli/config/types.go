// Package config provides configuration management for the workbench CLI.
//
// Settings are layered with koanf: built-in defaults, then workbench.yaml,
// then WORKBENCH_* environment variables, then explicitly set flags.
package config

import (
	"time"

	"github.com/leapstack-labs/workbench/internal/console"
	"github.com/leapstack-labs/workbench/internal/executor"
	"github.com/leapstack-labs/workbench/internal/streaming"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
// This allows CLI code to use config.TargetConfig without importing pkg/core.
type TargetConfig = core.TargetConfig

// Default configuration values.
const (
	DefaultStateFile     = ".workbench/state.db"
	DefaultTargetType    = "duckdb"
	DefaultOutput        = "table"
	DefaultPort          = 8765
	DefaultFrameInterval = streaming.DefaultFrameInterval
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultCacheEntries  = 8
	DefaultChunkRows     = 1000
	DefaultSessionSecret = "workbench-dev-secret-change-in-production" //nolint:gosec
)

// Config holds all CLI configuration options.
type Config struct {
	Target       *TargetConfig `koanf:"target"`
	StatePath    string        `koanf:"state_path"`
	Console      ConsoleConfig `koanf:"console"`
	UI           UIConfig      `koanf:"ui"`
	Verbose      bool          `koanf:"verbose"`
	OutputFormat string        `koanf:"output"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// ConsoleConfig holds result-set delivery settings.
type ConsoleConfig struct {
	RowBudget     int           `koanf:"row_budget"`
	ChunkRows     int           `koanf:"chunk_rows"`
	CacheEntries  int           `koanf:"cache_entries"`
	FrameInterval time.Duration `koanf:"frame_interval"`
	PollInterval  time.Duration `koanf:"poll_interval"`
	SpoolLimit    int64         `koanf:"spool_limit"`
	Debug         bool          `koanf:"debug"`
}

// UIConfig holds configuration for the web console.
type UIConfig struct {
	Port          int    `koanf:"port"`
	AutoOpen      bool   `koanf:"auto_open"`
	SessionSecret string `koanf:"session_secret"`
}

// defaults returns the lowest-priority configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"target.type":            DefaultTargetType,
		"state_path":             DefaultStateFile,
		"console.row_budget":     streaming.DefaultRowBudget,
		"console.chunk_rows":     DefaultChunkRows,
		"console.cache_entries":  DefaultCacheEntries,
		"console.frame_interval": DefaultFrameInterval.String(),
		"console.poll_interval":  DefaultPollInterval.String(),
		"console.spool_limit":    executor.DefaultSpoolLimit,
		"console.debug":          false,
		"ui.port":                DefaultPort,
		"ui.auto_open":           true,
		"ui.session_secret":      DefaultSessionSecret,
		"verbose":                false,
		"output":                 DefaultOutput,
	}
}

// Workbench converts the console settings into a workbench configuration.
func (c ConsoleConfig) Workbench() console.Config {
	var frames streaming.Scheduler = streaming.TimerFrames{Interval: c.FrameInterval}
	if c.FrameInterval <= 0 {
		frames = streaming.ImmediateFrames{}
	}
	return console.Config{
		RowBudget:    c.RowBudget,
		ChunkRows:    c.ChunkRows,
		CacheEntries: c.CacheEntries,
		PollInterval: c.PollInterval,
		Debug:        c.Debug,
		Frames:       frames,
	}
}
