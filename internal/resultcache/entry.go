package resultcache

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// Key identifies a cached result-set slice.
type Key string

// NoKey is returned by KeyFor when the tab or execution is not known yet.
const NoKey Key = ""

// KeyFor derives the cache key of (tabID, executionID, setIndex).
func KeyFor(tabID, executionID string, setIndex int) Key {
	if tabID == "" || executionID == "" {
		return NoKey
	}
	return Key(fmt.Sprintf("%s:%s#%d", tabID, executionID, setIndex))
}

// Meta is the partial execution-level metadata kept with a cached slice.
// Nil fields are unknown and are left alone by Merge.
type Meta struct {
	DurationMs   *int64
	FromCache    *bool
	Source       *string
	ScannedRows  *int64
	ScannedBytes *int64
	Truncated    *bool
	// RowBudget is the budget the slice was loaded under.
	RowBudget *int
}

// Merge returns m with every non-nil field of patch applied.
func (m Meta) Merge(patch Meta) Meta {
	if patch.DurationMs != nil {
		m.DurationMs = patch.DurationMs
	}
	if patch.FromCache != nil {
		m.FromCache = patch.FromCache
	}
	if patch.Source != nil {
		m.Source = patch.Source
	}
	if patch.ScannedRows != nil {
		m.ScannedRows = patch.ScannedRows
	}
	if patch.ScannedBytes != nil {
		m.ScannedBytes = patch.ScannedBytes
	}
	if patch.Truncated != nil {
		m.Truncated = patch.Truncated
	}
	if patch.RowBudget != nil {
		m.RowBudget = patch.RowBudget
	}
	return m
}

// IsTruncated reports whether the slice stopped at its row budget.
func (m Meta) IsTruncated() bool {
	return m.Truncated != nil && *m.Truncated
}

// MetaFromSession builds cache metadata from an engine session.
func MetaFromSession(s core.Session) Meta {
	return Meta{
		DurationMs:   core.Ptr(s.DurationMs),
		FromCache:    core.Ptr(s.FromCache),
		Source:       core.Ptr(s.Source),
		ScannedRows:  core.Ptr(s.ScannedRows),
		ScannedBytes: core.Ptr(s.ScannedBytes),
	}
}

// Patch describes a Touch. Nil fields keep the previous value. A non-nil
// Results replaces the cached rows wholesale, even when empty.
type Patch struct {
	Results         []core.ResultRow
	Meta            Meta
	ExecutionStatus *core.ExecutionStatus
	FullyLoaded     *bool
	DataVersion     *int64
}

// Entry is a cached result-set slice. Results must be treated as read-only.
type Entry struct {
	Key             Key
	Results         []core.ResultRow
	Meta            Meta
	ExecutionStatus core.ExecutionStatus
	FullyLoaded     bool
	DataVersion     int64
	LastUpdated     time.Time

	// seq orders writes that share a LastUpdated timestamp.
	seq uint64
}

// older reports whether e was written before other.
func (e *Entry) older(other *Entry) bool {
	if !e.LastUpdated.Equal(other.LastUpdated) {
		return e.LastUpdated.Before(other.LastUpdated)
	}
	return e.seq < other.seq
}
