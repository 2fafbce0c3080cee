package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// Execution is the persisted record of one script submission.
type Execution struct {
	ID           string
	TabID        string
	SQL          string
	Status       core.ExecutionStatus
	Source       string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Error        string
	ScannedRows  int64
	ScannedBytes int64
}

// Session converts the record into the engine-facing session view.
func (e *Execution) Session() core.Session {
	s := core.Session{
		ExecutionID:  e.ID,
		TabID:        e.TabID,
		SQL:          e.SQL,
		Status:       e.Status,
		StartedAt:    e.StartedAt,
		FinishedAt:   e.FinishedAt,
		Source:       e.Source,
		ScannedRows:  e.ScannedRows,
		ScannedBytes: e.ScannedBytes,
		Error:        e.Error,
	}
	if e.FinishedAt != nil {
		s.DurationMs = e.FinishedAt.Sub(e.StartedAt).Milliseconds()
	} else {
		s.DurationMs = time.Since(e.StartedAt).Milliseconds()
	}
	return s
}

// CreateExecution inserts a new execution record.
func (s *SQLiteStore) CreateExecution(ctx context.Context, e *Execution) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	s.logger.Debug("creating execution", slog.String("id", e.ID), slog.String("tab", e.TabID))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (id, tab_id, sql_text, status, source, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.TabID, e.SQL, string(e.Status), e.Source, toUnix(e.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

// FinishExecution records the terminal status of an execution.
func (s *SQLiteStore) FinishExecution(ctx context.Context, e *Execution) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if e.FinishedAt == nil {
		return fmt.Errorf("execution %s has no finish time", e.ID)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE executions
		SET status = ?, finished_at = ?, error = ?, scanned_rows = ?, scanned_bytes = ?
		WHERE id = ?`,
		string(e.Status), toUnix(*e.FinishedAt), e.Error, e.ScannedRows, e.ScannedBytes, e.ID)
	if err != nil {
		return fmt.Errorf("failed to finish execution: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("execution %s: %w", e.ID, ErrNotFound)
	}
	return nil
}

// UpdateScanStats stores the running scan counters of an execution.
func (s *SQLiteStore) UpdateScanStats(ctx context.Context, id string, rows, bytes int64) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE executions SET scanned_rows = ?, scanned_bytes = ? WHERE id = ?`, rows, bytes, id)
	if err != nil {
		return fmt.Errorf("failed to update scan stats: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*Execution, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, tab_id, sql_text, status, source, started_at, finished_at, error, scanned_rows, scanned_bytes
		FROM executions WHERE id = ?`, id)

	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	return e, nil
}

// ListExecutions returns the most recent executions of a tab, newest first.
func (s *SQLiteStore) ListExecutions(ctx context.Context, tabID string, limit int) ([]*Execution, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tab_id, sql_text, status, source, started_at, finished_at, error, scanned_rows, scanned_bytes
		FROM executions WHERE tab_id = ?
		ORDER BY started_at DESC
		LIMIT ?`, tabID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeExecution deletes an execution with its result sets and rows.
func (s *SQLiteStore) PurgeExecution(ctx context.Context, id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM result_rows WHERE execution_id = ?`,
		`DELETE FROM result_sets WHERE execution_id = ?`,
		`DELETE FROM executions WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to purge execution: %w", err)
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(sc scanner) (*Execution, error) {
	var (
		e          Execution
		status     string
		startedAt  int64
		finishedAt sql.NullInt64
	)
	if err := sc.Scan(&e.ID, &e.TabID, &e.SQL, &status, &e.Source, &startedAt, &finishedAt,
		&e.Error, &e.ScannedRows, &e.ScannedBytes); err != nil {
		return nil, err
	}
	e.Status = core.ExecutionStatus(status)
	e.StartedAt = fromUnix(startedAt)
	e.FinishedAt = nullableTime(finishedAt)
	return &e, nil
}
