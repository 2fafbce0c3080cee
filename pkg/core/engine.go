package core

import "context"

// MetadataSource exposes execution and result-set metadata.
type MetadataSource interface {
	// ListResultSetIndices returns the currently known result-set indices.
	ListResultSetIndices(ctx context.Context, executionID string) ([]int, error)

	// ListResultSetsMeta returns metadata for finished result sets.
	ListResultSetsMeta(ctx context.Context, executionID string) ([]ResultSetMeta, error)

	// GetSession returns the execution-level view.
	GetSession(ctx context.Context, executionID string) (Session, error)
}

// RowsOptions controls a chunked row read.
type RowsOptions struct {
	// RowBudget is the caller's buffer limit. Sources deliver at most one
	// row past it so the caller can tell "exactly full" from "truncated".
	RowBudget int

	// ChunkRows is the preferred number of rows per chunk.
	ChunkRows int

	// OnChunk receives every chunk in order. A non-nil error stops the read
	// and is returned from GetResultRows.
	OnChunk func(rows []Row) error
}

// RowSource streams result rows in chunks until exhausted or ctx is done.
type RowSource interface {
	GetResultRows(ctx context.Context, executionID string, setIndex int, opts RowsOptions) error
}

// ExecutionEngine is the collaborator that runs SQL and exposes its results.
type ExecutionEngine interface {
	MetadataSource
	RowSource

	// DataVersion increases whenever the engine's underlying data changes.
	DataVersion() int64
}
