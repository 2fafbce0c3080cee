package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// DotCommand describes one REPL meta command.
type DotCommand struct {
	Name    string
	Args    string
	Help    string
	Aliases []string
	Choices []string
}

// Usage returns the command with its argument placeholder.
func (d DotCommand) Usage() string {
	if d.Args == "" {
		return d.Name
	}
	return d.Name + " " + d.Args
}

// DotCommands lists the REPL meta commands in help order.
func DotCommands() []DotCommand {
	return []DotCommand{
		{Name: ".help", Help: "Show this help message"},
		{Name: ".overview", Help: "Show the statement overview of the last run"},
		{Name: ".set", Args: "<n>", Help: "Show result set n (numbered from 1)"},
		{Name: ".budget", Args: "[n]", Help: "Show or change the row budget"},
		{Name: ".tab", Args: "[name]", Help: "Show tabs or switch to another one"},
		{Name: ".rerun", Help: "Run the tab's last script again"},
		{Name: ".cancel", Help: "Cancel the running execution"},
		{Name: ".history", Help: "List recent executions of this tab"},
		{Name: ".debug", Args: "[on|off]", Help: "Toggle the loader and cache debug bundle", Choices: []string{"on", "off"}},
		{Name: ".clear", Help: "Clear the screen"},
		{Name: ".quit", Help: "Exit the REPL", Aliases: []string{".exit"}},
	}
}

func printREPLHelp(w io.Writer) {
	cmds := DotCommands()
	width := 0
	usages := make([]string, len(cmds))
	for i, c := range cmds {
		usages[i] = strings.Join(append([]string{c.Usage()}, c.Aliases...), " / ")
		width = max(width, len(usages[i]))
	}

	var b strings.Builder
	b.WriteString("\nCommands:\n")
	for i, c := range cmds {
		fmt.Fprintf(&b, "  %-*s %s\n", width, usages[i], c.Help)
	}
	b.WriteString(`
Tips:
  - SQL statements must end with a semicolon (;)
  - Several statements in one run produce one result set each
  - Ctrl-C cancels a running execution
`)
	_, _ = fmt.Fprintln(w, b.String())
}

func newDotCompleter() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, c := range DotCommands() {
		var choices []readline.PrefixCompleterInterface
		for _, ch := range c.Choices {
			choices = append(choices, readline.PcItem(ch))
		}
		items = append(items, readline.PcItem(c.Name, choices...))
		for _, a := range c.Aliases {
			items = append(items, readline.PcItem(a))
		}
	}
	return readline.NewPrefixCompleter(items...)
}
