package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/workbench/internal/cli/config"
)

// generateConfigDocs writes the configuration reference page.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "Workbench configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph("Workbench reads `workbench.yaml` (or `workbench.yml`) from the working directory or the nearest parent. " +
		"Every key can be overridden by an environment variable, and most by a flag. " +
		"Flags win over environment variables, which win over the file.")

	sections := []struct {
		title  string
		prefix string
	}{
		{"Target", "target."},
		{"Console", "console."},
		{"Web Console", "ui."},
		{"General", ""},
	}
	settings := config.Settings()
	for _, sec := range sections {
		var rows [][]string
		for _, s := range settings {
			if sec.prefix == "" && strings.Contains(s.Key, ".") {
				continue
			}
			if sec.prefix != "" && !strings.HasPrefix(s.Key, sec.prefix) {
				continue
			}
			flag := ""
			if s.Flag != "" {
				flag = InlineCode("--" + s.Flag)
			}
			def := ""
			if s.Default != "" {
				def = InlineCode(s.Default)
			}
			rows = append(rows, []string{InlineCode(s.Key), def, InlineCode(s.Env), flag, s.Description})
		}
		w.Header(2, sec.title)
		w.Table([]string{"Key", "Default", "Environment", "Flag", "Description"}, rows)
	}

	w.Header(2, "Example")
	w.CodeBlock("yaml", `target:
  type: postgres
  host: localhost
  port: 5432
  database: analytics
  username: analyst
  password: ${PGPASSWORD}

console:
  row_budget: 200000
  frame_interval: 16ms

ui:
  port: 8765`)

	w.Paragraph("Edits to `console.row_budget` and `console.debug` apply to a running `workbench serve` without a restart.")

	filename := filepath.Join(outDir, "configuration.md")
	if err := os.WriteFile(filename, w.Bytes(), 0600); err != nil {
		return err
	}
	log.Printf("  Generated configuration.md")
	return nil
}
