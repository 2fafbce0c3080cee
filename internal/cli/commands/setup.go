package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/cli/config"
	"github.com/leapstack-labs/workbench/internal/console"
	"github.com/leapstack-labs/workbench/internal/executor"
	"github.com/leapstack-labs/workbench/internal/metrics"
	"github.com/leapstack-labs/workbench/internal/state"
	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/workbench/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/workbench/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/workbench/pkg/adapters/sqlite"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg       *config.Config
	Logger    *slog.Logger
	Store     *state.SQLiteStore
	Adapter   core.Adapter
	Engine    *executor.Engine
	Workbench *console.Workbench
}

// NewCommandContext opens the state store, connects the target and starts
// a workbench. Returns the context and a cleanup function that must be
// called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	return openWorkbench(cmd.Context(), cfg, logger)
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need database access.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:    getConfig(),
		Logger: config.GetLogger(cmd.Context()),
	}
}

// getConfig returns the current configuration, loading defaults when no
// command loaded one.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg, err := config.LoadConfig("", nil)
	if err != nil {
		cfg = &config.Config{
			Target:    &config.TargetConfig{Type: config.DefaultTargetType},
			StatePath: config.DefaultStateFile,
		}
		cfg.Normalize()
	}
	return cfg
}

func openWorkbench(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*CommandContext, func(), error) {
	metrics.Register(prometheus.DefaultRegisterer)

	// Ensure state directory exists
	if cfg.StatePath != ":memory:" {
		if stateDir := filepath.Dir(cfg.StatePath); stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0750); err != nil {
				return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(ctx, cfg.StatePath); err != nil {
		return nil, nil, fmt.Errorf("failed to open state database: %w", err)
	}

	db, err := adapter.NewAdapter(cfg.Target.AdapterConfig(), logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	if err := db.Connect(ctx, cfg.Target.AdapterConfig()); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.Target.Type, err)
	}

	eng, err := executor.New(executor.Config{
		Adapter:    db,
		Store:      store,
		Logger:     logger.With(slog.String("component", "executor")),
		SpoolLimit: cfg.Console.SpoolLimit,
	})
	if err != nil {
		_ = db.Close()
		_ = store.Close()
		return nil, nil, err
	}

	wbCfg := cfg.Console.Workbench()
	wbCfg.Engine = eng
	wbCfg.Logger = logger
	wb := console.New(wbCfg)

	cleanup := func() {
		wb.Close()
		_ = eng.Close()
		_ = db.Close()
		_ = store.Close()
	}

	return &CommandContext{
		Cfg:       cfg,
		Logger:    logger,
		Store:     store,
		Adapter:   db,
		Engine:    eng,
		Workbench: wb,
	}, cleanup, nil
}
