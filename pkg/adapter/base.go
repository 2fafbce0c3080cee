package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// ErrNotConnected is returned by statement methods before Open succeeds.
var ErrNotConnected = errors.New("database connection not established")

// Connection pool options read from the target's options map.
const (
	OptMaxOpenConns    = "max_open_conns"
	OptMaxIdleConns    = "max_idle_conns"
	OptConnMaxLifetime = "conn_max_lifetime"
	OptConnMaxIdleTime = "conn_max_idle_time"
)

const previewRunes = 80

// BaseSQLAdapter holds the database/sql handle shared by the concrete
// adapters and implements the statement half of core.Adapter. Embed it and
// call Open from Connect.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger
}

func (b *BaseSQLAdapter) log() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// Open opens driverName with dsn, applies pool options from cfg and pings
// the database before keeping the handle.
func (b *BaseSQLAdapter) Open(ctx context.Context, driverName, dsn string, cfg core.AdapterConfig) error {
	start := time.Now()
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", driverName, err)
	}
	if err := ApplyPoolOptions(db, cfg.Options); err != nil {
		_ = db.Close()
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s: %w", driverName, err)
	}

	b.DB = db
	b.Cfg = cfg
	b.log().Debug("database connected",
		slog.String("driver", driverName),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// Close closes the database connection. Closing twice is a no-op.
func (b *BaseSQLAdapter) Close() error {
	if b.DB == nil {
		return nil
	}
	b.log().Debug("closing database connection")
	err := b.DB.Close()
	b.DB = nil
	return err
}

// IsConnected reports whether Open succeeded and Close was not called.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Exec runs a statement that returns no rows. Affected rows are -1 when
// the driver cannot report them, which is common for DDL.
func (b *BaseSQLAdapter) Exec(ctx context.Context, stmt string) (int64, error) {
	if b.DB == nil {
		return 0, ErrNotConnected
	}
	start := time.Now()
	res, err := b.DB.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("failed to execute statement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = -1
	}
	b.log().Debug("statement executed",
		slog.String("sql", Preview(stmt)),
		slog.Int64("affected", affected),
		slog.Duration("elapsed", time.Since(start)))
	return affected, nil
}

// Query runs a row-returning statement. The caller closes the rows and
// checks rows.Err after iterating.
func (b *BaseSQLAdapter) Query(ctx context.Context, stmt string) (*core.Rows, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	start := time.Now()
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	b.log().Debug("query opened",
		slog.String("sql", Preview(stmt)),
		slog.Duration("elapsed", time.Since(start)))
	return &core.Rows{Rows: rows}, nil
}

// ApplyPoolOptions configures db from the pool keys of opts. Other keys
// are left for the adapter.
func ApplyPoolOptions(db *sql.DB, opts map[string]string) error {
	for key, raw := range opts {
		switch key {
		case OptMaxOpenConns, OptMaxIdleConns:
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid %s %q: want a non-negative integer", key, raw)
			}
			if key == OptMaxOpenConns {
				db.SetMaxOpenConns(n)
			} else {
				db.SetMaxIdleConns(n)
			}
		case OptConnMaxLifetime, OptConnMaxIdleTime:
			d, err := time.ParseDuration(raw)
			if err != nil || d < 0 {
				return fmt.Errorf("invalid %s %q: want a duration such as 5m", key, raw)
			}
			if key == OptConnMaxLifetime {
				db.SetConnMaxLifetime(d)
			} else {
				db.SetConnMaxIdleTime(d)
			}
		}
	}
	return nil
}

// Preview collapses whitespace in stmt and shortens it for log lines.
func Preview(stmt string) string {
	s := strings.Join(strings.Fields(stmt), " ")
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes-3]) + "..."
}
