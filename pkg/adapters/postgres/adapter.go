// Package postgres provides a PostgreSQL adapter backed by pgx's
// database/sql driver.
//
// Import it with a blank identifier to register the "postgres" target type:
//
//	import _ "github.com/leapstack-labs/workbench/pkg/adapters/postgres"
package postgres

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/leapstack-labs/workbench/pkg/adapter"
)

func init() {
	adapter.Register("postgres", func(logger *slog.Logger) adapter.Adapter { return New(logger) }, "postgresql", "pg")
}

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "postgres"
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))
	return a.Open(ctx, "pgx", buildDSN(cfg), cfg)
}

var poolOptions = []string{
	adapter.OptMaxOpenConns,
	adapter.OptMaxIdleConns,
	adapter.OptConnMaxLifetime,
	adapter.OptConnMaxIdleTime,
}

// buildDSN renders cfg as a libpq keyword/value string. Target options
// other than the pool settings are passed through as extra keywords.
func buildDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	kv := [][2]string{
		{"host", host},
		{"port", strconv.Itoa(port)},
		{"dbname", cfg.Database},
		{"sslmode", "disable"},
	}
	if cfg.Username != "" {
		kv = append(kv, [2]string{"user", cfg.Username})
	}
	if cfg.Password != "" {
		kv = append(kv, [2]string{"password", cfg.Password})
	}
	if cfg.Schema != "" {
		kv = append(kv, [2]string{"search_path", cfg.Schema})
	}

	extra := make([]string, 0, len(cfg.Options))
	for k := range cfg.Options {
		if !slices.Contains(poolOptions, k) {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	for _, k := range extra {
		if i := slices.IndexFunc(kv, func(p [2]string) bool { return p[0] == k }); i >= 0 {
			kv[i][1] = cfg.Options[k]
			continue
		}
		kv = append(kv, [2]string{k, cfg.Options[k]})
	}

	parts := make([]string, 0, len(kv))
	for _, p := range kv {
		parts = append(parts, p[0]+"="+quote(p[1]))
	}
	return strings.Join(parts, " ")
}

// quote wraps values that are empty or contain spaces, quotes or
// backslashes in single quotes, escaping as libpq expects.
func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\\t") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
