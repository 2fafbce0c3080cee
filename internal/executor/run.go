package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/workbench/internal/metrics"
	"github.com/leapstack-labs/workbench/internal/state"
	"github.com/leapstack-labs/workbench/pkg/core"
)

const canceledMessage = "statement canceled"

// run executes the statements of one execution in order and records the
// terminal state. Persistence after the run uses a fresh context so a
// canceled run still reaches a terminal status.
func (e *Engine) run(ctx context.Context, exec *state.Execution, stmts []string) {
	defer e.wg.Done()
	defer e.forget(exec.ID)

	status := core.ExecutionStatusSuccess
	for i, stmt := range stmts {
		if ctx.Err() != nil {
			status = core.ExecutionStatusCanceled
			break
		}

		rs, err := e.runStatement(ctx, exec, i, stmt)
		e.finishResultSet(rs)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			status = core.ExecutionStatusCanceled
			exec.Error = canceledMessage
		} else {
			status = core.ExecutionStatusError
			exec.Error = fmt.Sprintf("statement %d: %v", i+1, err)
		}
		e.logger.Warn("statement failed",
			slog.String("execution", exec.ID),
			slog.Int("index", i),
			slog.String("error", err.Error()))
		break
	}

	now := time.Now()
	exec.Status = status
	exec.FinishedAt = &now

	finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.FinishExecution(finishCtx, exec); err != nil {
		e.logger.Error("failed to record execution result",
			slog.String("execution", exec.ID),
			slog.String("error", err.Error()))
	}

	metrics.Executions.WithLabelValues(string(status)).Inc()
	e.logger.Info("execution finished",
		slog.String("execution", exec.ID),
		slog.String("status", string(status)),
		slog.Duration("duration", now.Sub(exec.StartedAt)))
	e.notify.Broadcast()
}

// runStatement registers result set idx and runs stmt. The returned record
// carries the statement's outcome whether or not err is nil.
func (e *Engine) runStatement(ctx context.Context, exec *state.Execution, idx int, stmt string) (*state.ResultSet, error) {
	rs := &state.ResultSet{
		ExecutionID: exec.ID,
		SetIndex:    idx,
		SQL:         stmt,
		StartedAt:   time.Now(),
	}
	if err := e.store.RegisterResultSet(ctx, rs); err != nil {
		rs.Status = core.ResultSetStatusError
		rs.ErrorMessage = err.Error()
		return rs, err
	}
	e.notify.Broadcast()

	var err error
	if ReturnsRows(stmt) {
		err = e.query(ctx, exec, rs)
	} else {
		var affected int64
		affected, err = e.adapter.Exec(ctx, stmt)
		if err == nil {
			rs.AffectedRows = affected
		}
	}
	if err == nil && mutates(stmt) {
		e.version.Add(1)
	}

	switch {
	case err == nil:
		rs.Status = core.ResultSetStatusSuccess
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		rs.Status = core.ResultSetStatusError
		rs.ErrorMessage = canceledMessage
	default:
		rs.Status = core.ResultSetStatusError
		rs.ErrorMessage = err.Error()
	}
	return rs, err
}

// query runs a row-returning statement and spools its rows in batches.
func (e *Engine) query(ctx context.Context, exec *state.Execution, rs *state.ResultSet) error {
	rows, err := e.adapter.Query(ctx, rs.SQL)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("failed to read columns: %w", err)
	}
	rs.Columns = cols

	var (
		batch   = make([]core.Row, 0, e.spoolBatch)
		spooled int64
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := e.store.AppendRows(ctx, rs.ExecutionID, rs.SetIndex, spooled+1, batch)
		if err != nil {
			return err
		}
		spooled += int64(len(batch))
		exec.ScannedBytes += n
		batch = batch[:0]
		e.notify.Broadcast()
		return nil
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		rs.RowCount++
		exec.ScannedRows++
		if rs.RowCount > e.spoolLimit {
			rs.Limited = true
			rs.LimitValue = e.spoolLimit
			continue
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(core.Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		batch = append(batch, row)
		if len(batch) >= e.spoolBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}
	return e.store.UpdateScanStats(ctx, exec.ID, exec.ScannedRows, exec.ScannedBytes)
}

// finishResultSet persists final metadata. It runs even after cancellation.
func (e *Engine) finishResultSet(rs *state.ResultSet) {
	now := time.Now()
	rs.FinishedAt = &now

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.FinishResultSet(ctx, rs); err != nil {
		e.logger.Error("failed to record result set",
			slog.String("execution", rs.ExecutionID),
			slog.Int("index", rs.SetIndex),
			slog.String("error", err.Error()))
	}
	metrics.StatementDuration.WithLabelValues(string(rs.Status)).Observe(now.Sub(rs.StartedAt).Seconds())
	e.notify.Broadcast()
}

// mutates reports whether a statement may change data visible to readers.
func mutates(stmt string) bool {
	words := keywords(stmt)
	if len(words) == 0 {
		return false
	}
	return !rowKeywords[words[0]]
}
