package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/workbench/internal/cli"
	"github.com/leapstack-labs/workbench/internal/cli/commands"
	"github.com/leapstack-labs/workbench/internal/cli/config"
)

// cliPage is one generated command page.
type cliPage struct {
	cmd  *cobra.Command
	slug string
}

func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	pages := collectPages(root)

	files := map[string][]byte{"index.md": cliIndex(root, pages)}
	for _, p := range pages {
		files[p.slug+".md"] = commandPage(p)
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(outDir, name), data, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		log.Printf("  Generated %s", name)
	}
	return nil
}

// collectPages walks the command tree depth first. Nested commands get a
// slug built from their path below the root, e.g. completion-bash.
func collectPages(root *cobra.Command) []cliPage {
	var pages []cliPage
	var walk func(cmd *cobra.Command, prefix []string)
	walk = func(cmd *cobra.Command, prefix []string) {
		for _, sub := range cmd.Commands() {
			if !documented(sub) {
				continue
			}
			path := append(append([]string{}, prefix...), sub.Name())
			pages = append(pages, cliPage{cmd: sub, slug: strings.Join(path, "-")})
			walk(sub, path)
		}
	}
	walk(root, nil)
	return pages
}

func documented(cmd *cobra.Command) bool {
	return !cmd.Hidden && cmd.Name() != "help" && cmd.Name() != "__complete"
}

func cliIndex(root *cobra.Command, pages []cliPage) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for workbench")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph("Workbench runs SQL scripts from the shell, an interactive REPL, a terminal UI or a browser console. Every statement of a script produces a result set capped at the row budget.")
	w.CodeBlock("bash", "go install github.com/leapstack-labs/workbench/cmd/workbench@latest\nworkbench <command> [options]")

	w.Header(2, "Commands")
	var rows [][]string
	for _, p := range pages {
		name := strings.TrimPrefix(p.cmd.CommandPath(), root.Name()+" ")
		rows = append(rows, []string{
			fmt.Sprintf("[%s](/cli/%s)", InlineCode(name), p.slug),
			cleanDescription(p.cmd.Short),
		})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Options")
	w.Paragraph("These flags are available for all commands and override the configuration file:")
	writeFlagsTable(w, root.PersistentFlags())

	w.Header(2, "Environment Variables")
	var envRows [][]string
	for _, s := range config.Settings() {
		envRows = append(envRows, []string{InlineCode(s.Env), s.Description})
	}
	w.Table([]string{"Variable", "Description"}, envRows)
	w.Paragraph("Precedence, lowest first: built-in defaults, workbench.yaml, environment, flags.")

	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "Success"},
		{InlineCode("1"), "Error or failed statement (details on stderr)"},
	})
	return w.Bytes()
}

func commandPage(p cliPage) []byte {
	cmd := p.cmd
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.CommandPath(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.CommandPath())
	if cmd.Long != "" {
		w.Paragraph(cmd.Long)
	} else {
		w.Paragraph(cmd.Short)
	}

	w.Header(2, "Usage")
	use := cmd.UseLine()
	if cmd.HasAvailableSubCommands() {
		use = cmd.CommandPath() + " <subcommand>"
	}
	w.CodeBlock("bash", use)

	if len(cmd.Aliases) > 0 {
		w.Header(2, "Aliases")
		aliases := make([]string, 0, len(cmd.Aliases))
		for _, a := range cmd.Aliases {
			aliases = append(aliases, InlineCode(a))
		}
		w.BulletList(aliases)
	}

	if cmd.HasAvailableSubCommands() {
		w.Header(2, "Subcommands")
		var rows [][]string
		for _, sub := range cmd.Commands() {
			if documented(sub) {
				rows = append(rows, []string{
					fmt.Sprintf("[%s](/cli/%s-%s)", InlineCode(sub.Name()), p.slug, sub.Name()),
					cleanDescription(sub.Short),
				})
			}
		}
		w.Table([]string{"Subcommand", "Description"}, rows)
	}

	if cmd.HasAvailableLocalFlags() {
		w.Header(2, "Options")
		writeFlagsTable(w, cmd.LocalFlags())
	}

	if p.slug == "query" {
		w.Header(2, "REPL Commands")
		w.Paragraph("Without SQL, a file or piped input the command opens a REPL. Lines starting with a dot are meta commands:")
		var rows [][]string
		for _, d := range commands.DotCommands() {
			usage := InlineCode(d.Usage())
			for _, a := range d.Aliases {
				usage += ", " + InlineCode(a)
			}
			rows = append(rows, []string{usage, d.Help})
		}
		w.Table([]string{"Command", "Description"}, rows)
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", cleanExample(cmd.Example))
	}

	w.Paragraph(fmt.Sprintf("Global options are listed in the [CLI reference](/cli/). Run %s for the same text in a terminal.",
		InlineCode(cmd.CommandPath()+" --help")))
	return w.Bytes()
}

func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		short := ""
		if f.Shorthand != "" {
			short = InlineCode("-" + f.Shorthand)
		}
		rows = append(rows, []string{
			InlineCode("--" + f.Name),
			short,
			flagDefault(f),
			cleanDescription(f.Usage),
		})
	})
	w.Table([]string{"Option", "Short", "Default", "Description"}, rows)
}

func flagDefault(f *pflag.Flag) string {
	switch f.Value.Type() {
	case "bool":
		return f.DefValue
	case "string", "duration", "int", "int64":
		if f.DefValue == "" || f.DefValue == "0" || f.DefValue == "0s" {
			return ""
		}
		return InlineCode(f.DefValue)
	default:
		return f.DefValue
	}
}

// cleanExample strips the indentation shared by all non-blank lines.
func cleanExample(example string) string {
	lines := strings.Split(example, "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent == -1 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return strings.TrimSpace(example)
	}
	for i, line := range lines {
		if len(line) >= indent {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
