package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/workbench/internal/streaming"
	"github.com/leapstack-labs/workbench/pkg/adapter"
)

// OutputFormats lists the accepted values of --output.
var OutputFormats = []string{"table", "json", "csv", "md", "markdown", "yaml"}

// ValidateTarget checks the target type against the adapter registry and
// rewrites an alias such as "postgresql" to the adapter's name.
func ValidateTarget(t *TargetConfig) error {
	if t == nil || t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	name, ok := adapter.Resolve(t.Type)
	if !ok {
		return adapter.NewUnknownAdapterError(t.Type)
	}
	t.Type = name
	return nil
}

// Normalize applies range limits that are corrected rather than rejected.
func (c *Config) Normalize() {
	c.Console.RowBudget = streaming.ClampBudget(c.Console.RowBudget)
	if c.Console.CacheEntries <= 0 {
		c.Console.CacheEntries = DefaultCacheEntries
	}
	if c.Console.ChunkRows <= 0 {
		c.Console.ChunkRows = DefaultChunkRows
	}
	if c.Console.PollInterval <= 0 {
		c.Console.PollInterval = DefaultPollInterval
	}
	if c.UI.Port == 0 {
		c.UI.Port = DefaultPort
	}
	if c.OutputFormat == "" {
		c.OutputFormat = DefaultOutput
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := ValidateTarget(c.Target); err != nil {
		return fmt.Errorf("invalid target configuration: %w", err)
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if !slices.Contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (want one of %s)", c.OutputFormat, strings.Join(OutputFormats, ", "))
	}
	if c.UI.Port < 0 || c.UI.Port > 65535 {
		return fmt.Errorf("ui.port %d out of range", c.UI.Port)
	}
	if c.Console.SpoolLimit < 0 {
		return fmt.Errorf("console.spool_limit must not be negative")
	}
	return nil
}
