package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/console"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// DefaultTab is the tab the CLI runs in unless --tab says otherwise.
const DefaultTab = "cli"

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format   string
	Input    string
	Tab      string
	Set      int
	Overview bool
	Timeout  time.Duration
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run SQL against the target and show the results",
		Long: `Run one or more SQL statements against the configured target.

A script with several statements produces one result set per statement.
After the run, the last result set is shown together with an overview of
every statement, unless --set or --overview picks a different view.
Results are capped at the row budget (--row-budget).

When invoked without arguments on a terminal, enters interactive REPL mode.`,
		Example: `  # Run a statement
  workbench query "SELECT 42 AS answer"

  # Several statements; show the second result set
  workbench query "SELECT 1; SELECT 2; SELECT 3" --set 2

  # Only the overview, as JSON
  workbench query -i script.sql --overview --format json

  # Interactive mode
  workbench query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	// Flags
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md, yaml (default: output setting)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().StringVar(&opts.Tab, "tab", DefaultTab, "Tab to run in (REPL history is kept per tab)")
	cmd.Flags().IntVar(&opts.Set, "set", 0, "Show result set N (1-based) instead of the last one")
	cmd.Flags().BoolVar(&opts.Overview, "overview", false, "Show only the statement overview")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Cancel the run after this long (0 = no limit)")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	// Determine SQL source
	var sqlQuery string

	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(os.Stdin):
		// Read from stdin (piped input)
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	format := opts.Format
	if format == "" {
		format = cmdCtx.Cfg.OutputFormat
	}

	if strings.TrimSpace(sqlQuery) == "" {
		if len(args) > 0 || opts.Input != "" {
			return fmt.Errorf("query cannot be empty")
		}
		// No input, TTY detected - enter REPL mode
		return runQueryREPL(cmd, cmdCtx, opts.Tab, format)
	}

	ctx := cmd.Context()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	c := cmdCtx.Workbench.Focus(ctx, opts.Tab)
	v, err := runOnce(ctx, c, sqlQuery)
	if err != nil {
		return err
	}

	switch {
	case opts.Overview:
		if err := c.SelectOverview(ctx); err != nil {
			return err
		}
		v = c.View()
	case opts.Set > 0:
		if v, err = showSet(ctx, c, opts.Set-1); err != nil {
			return err
		}
	}

	if err := renderView(cmd.OutOrStdout(), v, format); err != nil {
		return err
	}
	if v.Session.Status == core.ExecutionStatusError {
		return fmt.Errorf("execution failed: %s", v.Session.Error)
	}
	return nil
}

// runOnce submits script and waits until the execution finished and the
// auto-selected result set is fully visible. A canceled wait cancels the
// execution.
func runOnce(ctx context.Context, c *console.Controller, script string) (console.View, error) {
	if _, err := c.Run(ctx, script); err != nil {
		return console.View{}, err
	}
	if err := c.Wait(ctx); err != nil {
		c.Cancel()
		return console.View{}, fmt.Errorf("waiting for results: %w", err)
	}
	return c.View(), nil
}

// showSet selects index and waits for its rows.
func showSet(ctx context.Context, c *console.Controller, index int) (console.View, error) {
	if err := c.SelectResultSet(ctx, index); err != nil {
		return console.View{}, err
	}
	if err := c.Wait(ctx); err != nil {
		return console.View{}, err
	}
	return c.View(), nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
