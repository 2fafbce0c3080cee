package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/workbench/internal/streaming"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/workbench/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/workbench/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/workbench/pkg/adapters/sqlite"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// TestValidateTarget tests target validation against the adapter registry.
func TestValidateTarget(t *testing.T) {
	tests := []struct {
		name      string
		target    *TargetConfig
		wantErr   bool
		errSubstr string
	}{
		{
			name:      "nil target",
			target:    nil,
			wantErr:   true,
			errSubstr: "target type is required",
		},
		{
			name:      "empty type",
			target:    &TargetConfig{Type: ""},
			wantErr:   true,
			errSubstr: "target type is required",
		},
		{
			name:    "valid duckdb",
			target:  &TargetConfig{Type: "duckdb"},
			wantErr: false,
		},
		{
			name:    "valid duckdb uppercase",
			target:  &TargetConfig{Type: "DuckDB"},
			wantErr: false,
		},
		{
			name:    "valid postgres",
			target:  &TargetConfig{Type: "postgres"},
			wantErr: false,
		},
		{
			name:    "valid sqlite",
			target:  &TargetConfig{Type: "sqlite"},
			wantErr: false,
		},
		{
			name:      "unknown type mysql",
			target:    &TargetConfig{Type: "mysql"},
			wantErr:   true,
			errSubstr: "unknown adapter type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTarget(tt.target)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateTarget_ResolvesAlias(t *testing.T) {
	target := &TargetConfig{Type: "PostgreSQL"}
	require.NoError(t, ValidateTarget(target))
	assert.Equal(t, "postgres", target.Type)

	err := ValidateTarget(&TargetConfig{Type: "duckd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "duckdb"?`)
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultTargetType, cfg.Target.Type)
	assert.Equal(t, streaming.DefaultRowBudget, cfg.Console.RowBudget)
	assert.Equal(t, DefaultCacheEntries, cfg.Console.CacheEntries)
	assert.Equal(t, DefaultFrameInterval, cfg.Console.FrameInterval)
	assert.Equal(t, DefaultPollInterval, cfg.Console.PollInterval)
	assert.Equal(t, int64(1_000_001), cfg.Console.SpoolLimit)
	assert.Equal(t, DefaultPort, cfg.UI.Port)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.True(t, filepath.IsAbs(cfg.StatePath), "state path should be resolved, got %s", cfg.StatePath)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, `
target:
  type: sqlite
  database: data/app.db
state_path: state/ws.db
console:
  row_budget: 20000
  frame_interval: 50ms
  poll_interval: 1s
  debug: true
ui:
  port: 9000
output: json
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, "sqlite", cfg.Target.Type)
	assert.Equal(t, filepath.Join(dir, "data", "app.db"), cfg.Target.Database)
	assert.Equal(t, filepath.Join(dir, "state", "ws.db"), cfg.StatePath)
	assert.Equal(t, 20000, cfg.Console.RowBudget)
	assert.Equal(t, 50*time.Millisecond, cfg.Console.FrameInterval)
	assert.Equal(t, time.Second, cfg.Console.PollInterval)
	assert.True(t, cfg.Console.Debug)
	assert.Equal(t, 9000, cfg.UI.Port)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, dir, cfg.ProjectRoot)
}

func TestLoadConfig_RowBudgetClamped(t *testing.T) {
	tests := []struct {
		name   string
		budget string
		want   int
	}{
		{"below minimum", "10", streaming.MinRowBudget},
		{"above maximum", "50000000", streaming.MaxRowBudget},
		{"in range", "123456", 123456},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			path := writeConfig(t, "console:\n  row_budget: "+tt.budget+"\n")

			cfg, err := LoadConfig(path, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Console.RowBudget)
		})
	}
}

func TestLoadConfig_InMemoryDatabaseUntouched(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "target:\n  type: duckdb\n  database: \":memory:\"\n")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Target.Database)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown adapter", "target:\n  type: oracle\n", "unknown adapter type"},
		{"unknown output", "output: xml\n", "unknown output format"},
		{"bad duration", "console:\n  poll_interval: soon\n", "unable to decode config"},
		{"bad port", "ui:\n  port: 70000\n", "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			_, err := LoadConfig(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	ResetConfig()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadConfig_FindsFileUpward(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "console:\n  cache_entries: 3\n")
	nested := filepath.Join(filepath.Dir(path), "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0750))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	wantPath, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	gotPath, err := filepath.EvalSymlinks(GetConfigFileUsed())
	require.NoError(t, err)
	assert.Equal(t, wantPath, gotPath)
	assert.Equal(t, 3, cfg.Console.CacheEntries)
}

// TestLoadConfig_FlagPrecedence tests that flags override env vars and config file.
func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "console:\n  row_budget: 10000\n")

	// Set env var with different value
	t.Setenv("WORKBENCH_CONSOLE_ROW_BUDGET", "20000")

	// Create flag set with yet another value
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("row-budget", 0, "row budget")
	require.NoError(t, flags.Set("row-budget", "30000"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	// Flag should win
	assert.Equal(t, 30000, cfg.Console.RowBudget, "flag value should override config file and env var")
}

// TestLoadConfig_EnvPrecedenceOverFile tests that env vars override config file.
func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "console:\n  row_budget: 10000\nui:\n  port: 9000\n")

	t.Setenv("WORKBENCH_CONSOLE_ROW_BUDGET", "20000")
	t.Setenv("WORKBENCH_UI_PORT", "9100")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 20000, cfg.Console.RowBudget, "env var should override config file")
	assert.Equal(t, 9100, cfg.UI.Port)
}

// TestLoadConfig_FlagNotSetUsesEnv tests that unset flags fall back to env vars.
func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "console:\n  row_budget: 10000\n")
	t.Setenv("WORKBENCH_CONSOLE_ROW_BUDGET", "20000")

	// Note: not calling flags.Set(), so Changed is false
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("row-budget", 0, "row budget")

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 20000, cfg.Console.RowBudget, "env var should be used when flag is not set")
}

func TestLoadConfig_FlagPathsRelativeToWorkingDir(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "target:\n  type: sqlite\n")
	cwd := t.TempDir()
	t.Chdir(cwd)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("state", "", "state path")
	flags.String("database", "", "database")
	require.NoError(t, flags.Set("state", "s.db"))
	require.NoError(t, flags.Set("database", "d.db"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cwd, "s.db"), cfg.StatePath)
	assert.Equal(t, filepath.Join(cwd, "d.db"), cfg.Target.Database)
}

func TestReload_PicksUpFileChanges(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "console:\n  debug: false\n")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.False(t, cfg.Console.Debug)

	require.NoError(t, os.WriteFile(path, []byte("console:\n  debug: true\n  row_budget: 7000\n"), 0600))
	cfg, err = Reload(nil)
	require.NoError(t, err)

	assert.True(t, cfg.Console.Debug)
	assert.Equal(t, 7000, cfg.Console.RowBudget)
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"WORKBENCH_CONSOLE_ROW_BUDGET", "console.row_budget"},
		{"WORKBENCH_UI_SESSION_SECRET", "ui.session_secret"},
		{"WORKBENCH_TARGET_TYPE", "target.type"},
		{"WORKBENCH_STATE_PATH", "state_path"},
		{"WORKBENCH_VERBOSE", "verbose"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, envKey(tt.in), tt.in)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("WB_TEST_PASSWORD", "s3cret")

	assert.Equal(t, "s3cret", expandEnvVars("${WB_TEST_PASSWORD}"))
	assert.Equal(t, "user:s3cret@host", expandEnvVars("user:${WB_TEST_PASSWORD}@host"))
	assert.Equal(t, "${WB_TEST_MISSING}", expandEnvVars("${WB_TEST_MISSING}"))
	assert.Equal(t, "plain", expandEnvVars("plain"))
}

func TestConsoleConfig_Workbench(t *testing.T) {
	c := ConsoleConfig{RowBudget: 5000, ChunkRows: 10, CacheEntries: 2, FrameInterval: 16 * time.Millisecond, PollInterval: time.Second, Debug: true}
	wb := c.Workbench()

	assert.Equal(t, 5000, wb.RowBudget)
	assert.Equal(t, 10, wb.ChunkRows)
	assert.Equal(t, 2, wb.CacheEntries)
	assert.True(t, wb.Debug)
	assert.Equal(t, streaming.TimerFrames{Interval: 16 * time.Millisecond}, wb.Frames)

	c.FrameInterval = 0
	assert.Equal(t, streaming.ImmediateFrames{}, c.Workbench().Frames)
}

func TestSettings(t *testing.T) {
	settings := Settings()
	byKey := make(map[string]Setting, len(settings))
	for _, s := range settings {
		byKey[s.Key] = s
		assert.Equal(t, s.Key, envKey(s.Env), "env var %s must map back to its key", s.Env)
		assert.NotEmpty(t, s.Description, s.Key)
	}

	for key := range defaults() {
		_, ok := byKey[key]
		assert.True(t, ok, "default %s is undocumented", key)
	}
	for flag, key := range flagKeys {
		assert.Equal(t, flag, byKey[key].Flag, key)
	}

	budget := byKey["console.row_budget"]
	assert.Equal(t, "WORKBENCH_CONSOLE_ROW_BUDGET", budget.Env)
	assert.Equal(t, "row-budget", budget.Flag)
	assert.Equal(t, "100000", budget.Default)
	assert.Equal(t, "output", byKey["output"].Flag)
	assert.Empty(t, byKey["target.host"].Default)
}
