package commands

import (
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/cli/config"
	"github.com/leapstack-labs/workbench/internal/console"
	"github.com/leapstack-labs/workbench/internal/ui"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port      int
	NoBrowser bool
	Watch     bool
	Dev       bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"ui"},
		Short:   "Start the web SQL console",
		Long: `Start a local web server with the SQL console.

The console provides:
- One editor and result panel per tab
- Streaming results capped at the row budget
- An overview of every statement in a multi-statement run
- Prometheus metrics at /metrics

Edits to the config file's console.row_budget and console.debug apply to
open tabs without a restart.`,
		Example: `  # Start on the configured port
  workbench serve

  # Start on a custom port without opening a browser
  workbench serve --port 3000 --no-browser`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, fmt.Sprintf("Port to serve on (default: %d)", config.DefaultPort))
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open browser")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Reload settings when the config file changes")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "Enable the hot reload endpoints")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	port := cfg.UI.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	autoOpen := cfg.UI.AutoOpen && !opts.NoBrowser

	serverCfg := ui.Config{
		Workbench:     cmdCtx.Workbench,
		Port:          port,
		SessionSecret: cfg.UI.SessionSecret,
		Gatherer:      prometheus.DefaultGatherer,
		Logger:        cmdCtx.Logger,
		Dev:           opts.Dev,
	}
	if opts.Watch && config.GetConfigFileUsed() != "" {
		serverCfg.ConfigPath = config.GetConfigFileUsed()
		serverCfg.OnConfigChange = func() {
			reloadSettings(cmd, cmdCtx.Workbench, cmdCtx.Logger)
		}
	}

	server := ui.NewServer(serverCfg)
	ln, err := server.Listen()
	if err != nil {
		return err
	}
	url := listenURL(ln.Addr())

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting SQL console on %s\n", url)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")
	if autoOpen {
		go openBrowser(url)
	}

	return server.ServeListener(cmd.Context(), ln)
}

// listenURL turns a bound address into a URL the browser can open.
func listenURL(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return fmt.Sprintf("http://localhost:%d", tcp.Port)
	}
	return "http://" + addr.String()
}

// reloadSettings re-reads the config file and applies the settings that
// can change at runtime. A broken file keeps the current settings.
func reloadSettings(cmd *cobra.Command, wb *console.Workbench, logger *slog.Logger) {
	cfg, err := config.Reload(cmd.Root().PersistentFlags())
	if err != nil {
		logger.Warn("config reload failed; keeping current settings", slog.String("error", err.Error()))
		return
	}
	budget := wb.SetRowBudget(cmd.Context(), cfg.Console.RowBudget)
	wb.SetDebug(cfg.Console.Debug)
	logger.Info("config reloaded",
		slog.Int("row_budget", budget),
		slog.Bool("debug", cfg.Console.Debug))
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
