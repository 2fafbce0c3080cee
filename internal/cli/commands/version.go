package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/workbench/internal/streaming"
	"github.com/leapstack-labs/workbench/pkg/adapter"
)

// BuildInfo identifies a workbench binary.
type BuildInfo struct {
	Version   string   `json:"version" yaml:"version"`
	Commit    string   `json:"commit" yaml:"commit"`
	Date      string   `json:"date" yaml:"date"`
	GoVersion string   `json:"go_version" yaml:"go_version"`
	Adapters  []string `json:"adapters" yaml:"adapters"`
	RowBudget int      `json:"default_row_budget" yaml:"default_row_budget"`
}

// NewBuildInfo fills in the Go runtime and registered adapters. An unknown
// commit falls back to the VCS revision stamped by the Go toolchain.
func NewBuildInfo(version, commit, date string) BuildInfo {
	if commit == "" || commit == "unknown" {
		commit = vcsRevision()
	}
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		Date:      date,
		GoVersion: runtime.Version(),
		Adapters:  adapter.ListAdapters(),
		RowBudget: streaming.DefaultRowBudget,
	}
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return "unknown"
}

// NewVersionCommand creates the version command. It honours the global
// --output flag for json and yaml.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the workbench version, build metadata and the database adapters compiled in.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format := ""
			if f := cmd.Flag("output"); f != nil {
				format = f.Value.String()
			}
			return writeVersion(cmd.OutOrStdout(), info, format)
		},
	}
}

func writeVersion(w io.Writer, info BuildInfo, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(info)
	}

	_, err := fmt.Fprintf(w, "workbench v%s\nSQL console with streaming, budgeted result sets\n\n"+
		"  commit:     %s\n  built:      %s\n  go:         %s\n  adapters:   %s\n  row budget: %d\n",
		info.Version, info.Commit, info.Date, info.GoVersion,
		strings.Join(info.Adapters, ", "), info.RowBudget)
	return err
}
