// Package cli provides the command-line interface for the workbench.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/cli/commands"
	"github.com/leapstack-labs/workbench/internal/cli/config"
	"github.com/leapstack-labs/workbench/pkg/adapter"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "workbench",
		Short: "Workbench - SQL console with streaming result sets",
		Long: `Workbench runs SQL scripts against DuckDB, PostgreSQL or SQLite and
streams every statement's result set back, capped at a configurable row budget.

Use it as a one-shot query tool, an interactive REPL, a terminal UI or a
browser console. Results of earlier runs are cached per tab so switching
between result sets does not re-read them.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			config.ResetConfig()
			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := newLogger(cmd, cfg)
			ctx := context.WithValue(cmd.Context(), config.LoggerKey(), logger)
			cmd.SetContext(ctx)

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", slog.String("path", configFile))
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./workbench.yaml, searched upward)")
	flags.String("state", "", fmt.Sprintf("Path to state database (default: %s)", config.DefaultStateFile))
	flags.String("target-type", "", "Target database type ("+strings.Join(adapter.ListAdapters(), "|")+")")
	flags.String("database", "", "Target database path or name (empty for in-memory)")
	flags.Int("row-budget", 0, "Maximum rows loaded per result set")
	flags.Int("chunk-rows", 0, "Rows read per chunk while streaming")
	flags.Int("cache-entries", 0, "Result sets kept in the cache")
	flags.Duration("frame-interval", 0, "Interval between UI flushes while streaming (0 flushes every chunk)")
	flags.Int64("spool-limit", 0, "Maximum rows spooled per statement")
	flags.Bool("debug", false, "Show loader and cache diagnostics")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.StringP("output", "o", "", "Output format (table|json|csv|md|yaml)")

	// Register completion for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.OutputFormats, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("target-type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return adapter.ListAdapters(), cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(commands.NewBuildInfo(Version, GitCommit, BuildDate)))
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewTUICommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// newLogger builds the process logger. Verbose mode logs at debug level,
// otherwise only warnings reach stderr.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for workbench.

To load completions:

Bash:
  $ source <(workbench completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ workbench completion bash > /etc/bash_completion.d/workbench
  # macOS:
  $ workbench completion bash > $(brew --prefix)/etc/bash_completion.d/workbench

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ workbench completion zsh > "${fpath[1]}/_workbench"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ workbench completion fish | source

  # To load completions for each session, execute once:
  $ workbench completion fish > ~/.config/fish/completions/workbench.fish

PowerShell:
  PS> workbench completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> workbench completion powershell > workbench.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
