package config

import (
	"fmt"
	"sort"
	"strings"
)

// Setting documents one configuration key.
type Setting struct {
	Key         string
	Env         string
	Flag        string
	Default     string
	Description string
}

var descriptions = map[string]string{
	"target.type":            "Database type: duckdb, postgres or sqlite",
	"target.database":        "File path (duckdb, sqlite) or database name (postgres); empty means in-memory",
	"target.host":            "Database host",
	"target.port":            "Database port",
	"target.username":        "Database user",
	"target.password":        "Database password; ${VAR} is expanded from the environment",
	"target.schema":          "Default schema",
	"state_path":             "SQLite file holding executions, result set metadata and spooled rows",
	"console.row_budget":     "Maximum rows loaded per result set, clamped to 5000..1000000",
	"console.chunk_rows":     "Rows read per chunk while streaming",
	"console.cache_entries":  "Result sets kept in the LRU cache",
	"console.frame_interval": "Interval between flushes of streamed rows to the view; 0 flushes every chunk",
	"console.poll_interval":  "How often a running execution is polled for progress",
	"console.spool_limit":    "Maximum rows spooled per statement",
	"console.debug":          "Include loader and cache diagnostics in views",
	"ui.port":                "Port of the web console",
	"ui.auto_open":           "Open a browser when the web console starts",
	"ui.session_secret":      "Secret used to sign web console session cookies",
	"verbose":                "Log at debug level",
	"output":                 "Output format: table, json, csv, md or yaml",
}

// Settings lists every documented configuration key with its default,
// environment variable and flag.
func Settings() []Setting {
	defs := defaults()
	flags := make(map[string]string, len(flagKeys))
	for flag, key := range flagKeys {
		flags[key] = flag
	}

	out := make([]Setting, 0, len(descriptions))
	for key, desc := range descriptions {
		s := Setting{
			Key:         key,
			Env:         envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_")),
			Flag:        flags[key],
			Description: desc,
		}
		if s.Flag == "" && (key == "verbose" || key == "output") {
			s.Flag = key
		}
		if v, ok := defs[key]; ok {
			s.Default = fmt.Sprint(v)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
