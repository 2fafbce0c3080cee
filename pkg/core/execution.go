package core

import "time"

// ExecutionStatus represents the lifecycle state of an execution.
type ExecutionStatus string

// Execution status constants.
const (
	ExecutionStatusRunning  ExecutionStatus = "running"
	ExecutionStatusSuccess  ExecutionStatus = "success"
	ExecutionStatusError    ExecutionStatus = "error"
	ExecutionStatusCanceled ExecutionStatus = "canceled"
)

// Terminal reports whether the status ends an execution's lifecycle.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusSuccess, ExecutionStatusError, ExecutionStatusCanceled:
		return true
	default:
		return false
	}
}

// ResultSetStatus is the outcome of a single statement.
type ResultSetStatus string

// Result set status constants. Running and Canceled only appear on
// synthesized overview items.
const (
	ResultSetStatusRunning  ResultSetStatus = "running"
	ResultSetStatusSuccess  ResultSetStatus = "success"
	ResultSetStatusError    ResultSetStatus = "error"
	ResultSetStatusCanceled ResultSetStatus = "canceled"
)

// Session is the execution-level view reported by the engine.
type Session struct {
	ExecutionID  string
	TabID        string
	SQL          string
	Status       ExecutionStatus
	StartedAt    time.Time
	FinishedAt   *time.Time
	DurationMs   int64
	FromCache    bool
	Source       string
	ScannedRows  int64
	ScannedBytes int64
	Error        string
}

// ResultSetMeta describes one statement's outcome within an execution.
// It is immutable once the statement has finished.
type ResultSetMeta struct {
	ExecutionID  string
	SetIndex     int
	SQLText      string
	Status       ResultSetStatus
	Columns      []string
	StartedAt    time.Time
	FinishedAt   time.Time
	DurationMs   int64
	RowCount     int64
	AffectedRows int64
	ErrorMessage string
	Limited      bool
	LimitValue   int64
}

// Row is an open record of column name to scalar or JSON value.
type Row = map[string]any

// ResultRow is one buffered row. RID is monotonic within a buffer and is
// not a database row id.
type ResultRow struct {
	TabID string
	RID   int64
	Data  Row
}

// OverviewItem is one line of the multi-statement overview. It is derived
// from ResultSetMeta or synthesized for indices without metadata.
type OverviewItem struct {
	ID           string
	SetIndex     int
	SQL          string
	Status       ResultSetStatus
	StartedAt    *time.Time
	FinishedAt   *time.Time
	ErrorMessage string
	RowsReturned *int64
	RowsAffected *int64
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
