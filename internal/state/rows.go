package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// AppendRows spools rows for a result set in a single transaction, numbering
// them from firstSeq. It returns the number of encoded bytes written.
func (s *SQLiteStore) AppendRows(ctx context.Context, executionID string, setIndex int, firstSeq int64, rows []core.Row) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO result_rows (execution_id, set_index, seq, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var written int64
	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return 0, fmt.Errorf("failed to encode row %d: %w", firstSeq+int64(i), err)
		}
		if _, err := stmt.ExecContext(ctx, executionID, setIndex, firstSeq+int64(i), string(data)); err != nil {
			return 0, fmt.Errorf("failed to spool row: %w", err)
		}
		written += int64(len(data))
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rows: %w", err)
	}
	return written, nil
}

// ReadRows returns up to limit rows with seq greater than afterSeq, together
// with the seq of the last returned row (afterSeq when none were returned).
func (s *SQLiteStore) ReadRows(ctx context.Context, executionID string, setIndex int, afterSeq int64, limit int) ([]core.Row, int64, error) {
	if s.db == nil {
		return nil, afterSeq, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, data FROM result_rows
		WHERE execution_id = ? AND set_index = ? AND seq > ?
		ORDER BY seq
		LIMIT ?`, executionID, setIndex, afterSeq, limit)
	if err != nil {
		return nil, afterSeq, fmt.Errorf("failed to read rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	last := afterSeq
	out := make([]core.Row, 0, limit)
	for rows.Next() {
		var (
			seq  int64
			data string
		)
		if err := rows.Scan(&seq, &data); err != nil {
			return nil, afterSeq, fmt.Errorf("failed to scan row: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader([]byte(data)))
		dec.UseNumber()
		var row core.Row
		if err := dec.Decode(&row); err != nil {
			return nil, afterSeq, fmt.Errorf("failed to decode row %d: %w", seq, err)
		}
		out = append(out, row)
		last = seq
	}
	if err := rows.Err(); err != nil {
		return nil, afterSeq, err
	}
	return out, last, nil
}
