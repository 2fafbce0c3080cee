package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// ResultSet is the persisted record of one statement's result.
// FinishedAt is nil while the statement is still producing rows.
type ResultSet struct {
	ExecutionID  string
	SetIndex     int
	SQL          string
	Status       core.ResultSetStatus
	Columns      []string
	StartedAt    time.Time
	FinishedAt   *time.Time
	RowCount     int64
	AffectedRows int64
	ErrorMessage string
	Limited      bool
	LimitValue   int64
}

// Finished reports whether the statement's metadata is final.
func (r *ResultSet) Finished() bool {
	return r.FinishedAt != nil
}

// Meta converts a finished record into result-set metadata.
func (r *ResultSet) Meta() core.ResultSetMeta {
	m := core.ResultSetMeta{
		ExecutionID:  r.ExecutionID,
		SetIndex:     r.SetIndex,
		SQLText:      r.SQL,
		Status:       r.Status,
		Columns:      r.Columns,
		StartedAt:    r.StartedAt,
		RowCount:     r.RowCount,
		AffectedRows: r.AffectedRows,
		ErrorMessage: r.ErrorMessage,
		Limited:      r.Limited,
		LimitValue:   r.LimitValue,
	}
	if r.FinishedAt != nil {
		m.FinishedAt = *r.FinishedAt
		m.DurationMs = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	}
	return m
}

// RegisterResultSet makes a result-set index known before its metadata is final.
func (s *SQLiteStore) RegisterResultSet(ctx context.Context, rs *ResultSet) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	cols, err := json.Marshal(nonNilColumns(rs.Columns))
	if err != nil {
		return fmt.Errorf("failed to encode columns: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO result_sets (execution_id, set_index, sql_text, columns, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		rs.ExecutionID, rs.SetIndex, rs.SQL, string(cols), toUnix(rs.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to register result set %d: %w", rs.SetIndex, err)
	}
	return nil
}

// FinishResultSet persists the final metadata of a result set.
func (s *SQLiteStore) FinishResultSet(ctx context.Context, rs *ResultSet) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if rs.FinishedAt == nil {
		return fmt.Errorf("result set %d has no finish time", rs.SetIndex)
	}

	cols, err := json.Marshal(nonNilColumns(rs.Columns))
	if err != nil {
		return fmt.Errorf("failed to encode columns: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE result_sets
		SET status = ?, columns = ?, finished_at = ?, row_count = ?, affected_rows = ?,
		    error_message = ?, limited = ?, limit_value = ?
		WHERE execution_id = ? AND set_index = ?`,
		string(rs.Status), string(cols), toUnix(*rs.FinishedAt), rs.RowCount, rs.AffectedRows,
		rs.ErrorMessage, rs.Limited, rs.LimitValue, rs.ExecutionID, rs.SetIndex)
	if err != nil {
		return fmt.Errorf("failed to finish result set %d: %w", rs.SetIndex, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("result set %s#%d: %w", rs.ExecutionID, rs.SetIndex, ErrNotFound)
	}
	return nil
}

// ListResultSetIndices returns every registered index of an execution in ascending order.
func (s *SQLiteStore) ListResultSetIndices(ctx context.Context, executionID string) ([]int, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT set_index FROM result_sets WHERE execution_id = ? ORDER BY set_index`, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list result set indices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	indices := []int{}
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("failed to scan result set index: %w", err)
		}
		indices = append(indices, idx)
	}
	return indices, rows.Err()
}

// ListResultSets returns the result sets of an execution in index order.
// With finishedOnly, records whose metadata is not final are skipped.
func (s *SQLiteStore) ListResultSets(ctx context.Context, executionID string, finishedOnly bool) ([]*ResultSet, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	query := `
		SELECT execution_id, set_index, sql_text, status, columns, started_at, finished_at,
		       row_count, affected_rows, error_message, limited, limit_value
		FROM result_sets WHERE execution_id = ?`
	if finishedOnly {
		query += ` AND finished_at IS NOT NULL`
	}
	query += ` ORDER BY set_index`

	rows, err := s.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list result sets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*ResultSet
	for rows.Next() {
		rs, err := scanResultSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result set: %w", err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// GetResultSet retrieves a single result set.
func (s *SQLiteStore) GetResultSet(ctx context.Context, executionID string, setIndex int) (*ResultSet, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT execution_id, set_index, sql_text, status, columns, started_at, finished_at,
		       row_count, affected_rows, error_message, limited, limit_value
		FROM result_sets WHERE execution_id = ? AND set_index = ?`, executionID, setIndex)

	rs, err := scanResultSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result set %s#%d: %w", executionID, setIndex, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result set: %w", err)
	}
	return rs, nil
}

func scanResultSet(sc scanner) (*ResultSet, error) {
	var (
		rs         ResultSet
		status     string
		cols       string
		startedAt  int64
		finishedAt sql.NullInt64
	)
	if err := sc.Scan(&rs.ExecutionID, &rs.SetIndex, &rs.SQL, &status, &cols, &startedAt, &finishedAt,
		&rs.RowCount, &rs.AffectedRows, &rs.ErrorMessage, &rs.Limited, &rs.LimitValue); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cols), &rs.Columns); err != nil {
		return nil, fmt.Errorf("invalid columns: %w", err)
	}
	rs.Status = core.ResultSetStatus(status)
	rs.StartedAt = fromUnix(startedAt)
	rs.FinishedAt = nullableTime(finishedAt)
	return &rs, nil
}

func nonNilColumns(cols []string) []string {
	if cols == nil {
		return []string{}
	}
	return cols
}
