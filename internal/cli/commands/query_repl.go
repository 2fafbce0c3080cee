package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/console"
)

func runQueryREPL(cmd *cobra.Command, cmdCtx *CommandContext, tab, format string) error {
	ctx := cmd.Context()
	r := newREPL(cmdCtx.Workbench, tab, format, cmd.OutOrStdout(), cmd.ErrOrStderr())
	r.wb.Focus(ctx, r.tab)

	// Setup history file next to the state database
	historyFile := ""
	if cmdCtx.Cfg.StatePath != ":memory:" {
		historyFile = filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "query_history")
	}

	// Configure readline
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.prompt(),
		HistoryFile:     historyFile,
		AutoComplete:    newDotCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	// Print welcome message
	_, _ = fmt.Fprintf(r.out, "Workbench SQL REPL (target: %s, row budget: %d)\n", cmdCtx.Cfg.Target.Type, r.wb.RowBudget())
	_, _ = fmt.Fprintln(r.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(r.out)

	// REPL loop
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			r.buf.Reset()
			rl.SetPrompt(r.prompt())
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if r.handleLine(ctx, line) {
			break
		}
		rl.SetPrompt(r.prompt())
	}

	return nil
}

// repl holds the interactive session state independent of the terminal.
type repl struct {
	wb     *console.Workbench
	tab    string
	format string
	out    io.Writer
	errOut io.Writer
	buf    strings.Builder
}

func newREPL(wb *console.Workbench, tab, format string, out, errOut io.Writer) *repl {
	if tab == "" {
		tab = DefaultTab
	}
	return &repl{wb: wb, tab: tab, format: format, out: out, errOut: errOut}
}

func (r *repl) prompt() string {
	if r.buf.Len() > 0 {
		return "    ...> "
	}
	return r.tab + "> "
}

func (r *repl) controller() *console.Controller {
	return r.wb.Tab(r.tab)
}

// handleLine processes one input line. It reports whether the session ends.
func (r *repl) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	// Handle dot-commands
	if r.buf.Len() == 0 && strings.HasPrefix(line, ".") {
		return r.handleDotCommand(ctx, line)
	}

	// Accumulate multi-line SQL until semicolon
	r.buf.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		r.buf.WriteString("\n")
		return false
	}

	script := r.buf.String()
	r.buf.Reset()
	r.run(ctx, func(ctx context.Context) (console.View, error) {
		return runOnce(ctx, r.controller(), script)
	})
	return false
}

// run executes fn with Ctrl-C bound to cancellation of the running
// execution, then renders the resulting view.
func (r *repl) run(ctx context.Context, fn func(context.Context) (console.View, error)) {
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	v, err := fn(runCtx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			_, _ = fmt.Fprintln(r.errOut, "Canceled")
			return
		}
		r.fail(err)
		return
	}
	r.render(v)
}

func (r *repl) render(v console.View) {
	if err := renderView(r.out, v, r.format); err != nil {
		r.fail(err)
	}
	if v.Debug != nil {
		renderDebug(r.out, v.Debug)
	}
	_, _ = fmt.Fprintln(r.out)
}

func (r *repl) fail(err error) {
	_, _ = fmt.Fprintf(r.errOut, "Error: %v\n", err)
}

func (r *repl) handleDotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	c := r.controller()

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(r.out)

	case ".overview":
		if err := c.SelectOverview(ctx); err != nil {
			r.fail(err)
			return false
		}
		r.render(c.View())

	case ".set":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(r.errOut, "Usage: .set <n>")
			return false
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 {
			_, _ = fmt.Fprintf(r.errOut, "Invalid result set %q (sets are numbered from 1)\n", parts[1])
			return false
		}
		r.run(ctx, func(ctx context.Context) (console.View, error) {
			return showSet(ctx, c, n-1)
		})

	case ".budget":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(r.out, "Row budget: %d\n", c.RowBudget())
			return false
		}
		n, err := strconv.Atoi(strings.ReplaceAll(parts[1], "_", ""))
		if err != nil {
			_, _ = fmt.Fprintf(r.errOut, "Invalid row budget %q\n", parts[1])
			return false
		}
		got := c.SetRowBudget(ctx, n)
		_, _ = fmt.Fprintf(r.out, "Row budget: %d\n", got)
		if v := c.View(); v.ExecutionID != "" && !v.Active.IsOverview() {
			r.run(ctx, func(ctx context.Context) (console.View, error) {
				if err := c.Wait(ctx); err != nil {
					return console.View{}, err
				}
				return c.View(), nil
			})
		}

	case ".tab":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(r.out, "Tab: %s (open: %s)\n", r.tab, strings.Join(r.wb.Tabs(), ", "))
			return false
		}
		r.tab = parts[1]
		r.wb.Focus(ctx, r.tab)
		_, _ = fmt.Fprintf(r.out, "Switched to tab %s\n", r.tab)

	case ".cancel":
		if c.Cancel() {
			_, _ = fmt.Fprintln(r.out, "Canceled")
		} else {
			_, _ = fmt.Fprintln(r.out, "Nothing is running")
		}

	case ".rerun":
		r.run(ctx, func(ctx context.Context) (console.View, error) {
			if _, err := c.Rerun(ctx); err != nil {
				return console.View{}, err
			}
			if err := c.Wait(ctx); err != nil {
				c.Cancel()
				return console.View{}, err
			}
			return c.View(), nil
		})

	case ".history":
		sessions, err := r.wb.History(ctx, r.tab)
		if err != nil {
			r.fail(err)
			return false
		}
		if err := renderHistory(r.out, sessions, r.format); err != nil {
			r.fail(err)
		}

	case ".debug":
		on := !r.wb.Debug()
		if len(parts) > 1 {
			on = parts[1] == "on" || parts[1] == "true"
		}
		r.wb.SetDebug(on)
		_, _ = fmt.Fprintf(r.out, "Debug: %t\n", on)
		if v := c.View(); v.Debug != nil {
			renderDebug(r.out, v.Debug)
		}

	case ".clear":
		_, _ = fmt.Fprint(r.out, "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(r.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func renderDebug(w io.Writer, d *console.DebugInfo) {
	t := newTable(w)
	t.SetTitle("Debug")
	t.AppendRows([]table.Row{
		{"cache key", d.CacheKey},
		{"buffered", d.Buffered},
		{"visible", d.Visible},
		{"read started", d.ReadStartedAt.Format("15:04:05.000")},
		{"first chunk after", d.TimeToFirstChunk},
		{"last flush", d.LastFlushAt.Format("15:04:05.000")},
		{"flushes", d.Flushes},
		{"cache entries", d.CacheEntries},
		{"cache keys", strings.Join(d.CacheKeys, ", ")},
		{"data version", fmt.Sprintf("%d (engine %d)", d.DataVersion, d.EngineVersion)},
		{"user picked", d.UserPicked},
	})
	t.Render()
}
