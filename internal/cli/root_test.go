package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command against an in-memory SQLite target.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(append([]string{"--target-type", "sqlite", "--state", ":memory:"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "workbench", cmd.Use)

	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"query", "serve", "tui", "version", "completion"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	for _, flag := range []string{"config", "state", "target-type", "database", "row-budget", "chunk-rows",
		"cache-entries", "frame-interval", "spool-limit", "debug", "verbose", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestRootCmd_Query(t *testing.T) {
	out, err := execute(t, "query", "SELECT 1 AS a; SELECT 'two' AS b")
	require.NoError(t, err)

	assert.Contains(t, out, "two")
	assert.Contains(t, out, "Result 2 of 2")
	assert.Contains(t, out, "(1 rows)")
}

func TestRootCmd_QuerySet(t *testing.T) {
	out, err := execute(t, "query", "--set", "1", "SELECT 'one' AS a; SELECT 'two' AS b")
	require.NoError(t, err)

	assert.Contains(t, out, "Result 1 of 2")
	assert.Contains(t, out, "one")
}

func TestRootCmd_QueryJSON(t *testing.T) {
	out, err := execute(t, "--output", "json", "query", "SELECT 42 AS answer")
	require.NoError(t, err)

	var rec struct {
		Status    string           `json:"status"`
		Rows      []map[string]any `json:"rows"`
		RowBudget int              `json:"row_budget"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "success", rec.Status)
	require.Len(t, rec.Rows, 1)
	assert.Equal(t, float64(42), rec.Rows[0]["answer"])
	assert.Equal(t, 100_000, rec.RowBudget)
}

func TestRootCmd_QueryRowBudgetFlag(t *testing.T) {
	out, err := execute(t, "--row-budget", "5000", "query", "--format", "json",
		"WITH RECURSIVE s(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM s WHERE x < 6000) SELECT x FROM s")
	require.NoError(t, err)

	var rec struct {
		Rows      []map[string]any `json:"rows"`
		Truncated bool             `json:"truncated"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Len(t, rec.Rows, 5000)
	assert.True(t, rec.Truncated)
}

func TestRootCmd_QueryFailure(t *testing.T) {
	out, err := execute(t, "query", "SELECT * FROM missing_table")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "execution failed")
	assert.Contains(t, out, "missing_table")
}

func TestRootCmd_QueryFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.sql")
	require.NoError(t, writeFile(path, "SELECT 'from file' AS src;"))

	out, err := execute(t, "query", "-i", path)
	require.NoError(t, err)
	assert.Contains(t, out, "from file")
}

func TestRootCmd_QueryOverview(t *testing.T) {
	out, err := execute(t, "query", "--overview", "SELECT 1 AS a; SELECT 2 AS b")
	require.NoError(t, err)

	assert.Contains(t, out, "SELECT 1 AS a")
	assert.Contains(t, out, "SELECT 2 AS b")
	assert.NotContains(t, out, "Result")
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"output format", []string{"--output", "xml", "query", "SELECT 1"}, "unknown output format"},
		{"target type", []string{"--target-type", "oracle", "query", "SELECT 1"}, "oracle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestVersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "workbench "+Version, strings.TrimSpace(buf.String()))
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := execute(t, "-o", "json", "version")
	require.NoError(t, err)

	var info struct {
		Version  string   `json:"version"`
		Adapters []string `json:"adapters"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, []string{"duckdb", "postgres", "sqlite"}, info.Adapters)
}

func TestTargetTypeAlias(t *testing.T) {
	out, err := execute(t, "--target-type", "sqlite3", "query", "SELECT 42 AS answer")
	require.NoError(t, err)
	assert.Contains(t, out, "42")
}

func TestCompletionCommand(t *testing.T) {
	tests := []struct {
		shell string
		want  string
	}{
		{"bash", "bash completion"},
		{"zsh", "#compdef workbench"},
		{"fish", "complete -c workbench"},
		{"powershell", "Register-ArgumentCompleter"},
	}
	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetArgs([]string{"completion", tt.shell})

			require.NoError(t, cmd.Execute())
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
