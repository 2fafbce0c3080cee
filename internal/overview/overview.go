// Package overview merges result-set metadata with the indices an engine
// reports into the ordered list shown by the multi-statement overview.
package overview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/leapstack-labs/workbench/internal/metrics"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// ItemID returns the overview item id of a result set.
func ItemID(executionID string, setIndex int) string {
	return fmt.Sprintf("%s#%d", executionID, setIndex)
}

// PlaceholderSQL is the text shown for a result set without metadata.
func PlaceholderSQL(setIndex int) string {
	return fmt.Sprintf("/* Result %d */", setIndex+1)
}

// placeholderStatus maps the execution status onto a synthesized item.
func placeholderStatus(s core.ExecutionStatus) core.ResultSetStatus {
	switch s {
	case core.ExecutionStatusRunning:
		return core.ResultSetStatusRunning
	case core.ExecutionStatusError:
		return core.ResultSetStatusError
	case core.ExecutionStatusCanceled:
		return core.ResultSetStatusCanceled
	default:
		return core.ResultSetStatusSuccess
	}
}

// Build returns one item per metadata record plus a placeholder for every
// reported index that has none, ascending by set index.
func Build(executionID string, metas []core.ResultSetMeta, indices []int, status core.ExecutionStatus) []core.OverviewItem {
	items := make([]core.OverviewItem, 0, max(len(metas), len(indices)))
	known := make(map[int]bool, len(metas))

	for _, m := range metas {
		if known[m.SetIndex] {
			continue
		}
		known[m.SetIndex] = true
		items = append(items, fromMeta(executionID, m))
	}
	for _, idx := range indices {
		if known[idx] {
			continue
		}
		known[idx] = true
		items = append(items, core.OverviewItem{
			ID:       ItemID(executionID, idx),
			SetIndex: idx,
			SQL:      PlaceholderSQL(idx),
			Status:   placeholderStatus(status),
		})
	}

	slices.SortFunc(items, func(a, b core.OverviewItem) int { return a.SetIndex - b.SetIndex })
	return items
}

func fromMeta(executionID string, m core.ResultSetMeta) core.OverviewItem {
	item := core.OverviewItem{
		ID:           ItemID(executionID, m.SetIndex),
		SetIndex:     m.SetIndex,
		SQL:          m.SQLText,
		Status:       m.Status,
		ErrorMessage: m.ErrorMessage,
	}
	if !m.StartedAt.IsZero() {
		item.StartedAt = core.Ptr(m.StartedAt)
	}
	if !m.FinishedAt.IsZero() {
		item.FinishedAt = core.Ptr(m.FinishedAt)
	}
	if m.Status == core.ResultSetStatusSuccess {
		if len(m.Columns) > 0 {
			item.RowsReturned = core.Ptr(m.RowCount)
		} else {
			item.RowsAffected = core.Ptr(m.AffectedRows)
		}
	}
	return item
}

// Snapshot is the last known view of an execution.
type Snapshot struct {
	ExecutionID string
	Session     core.Session
	HasSession  bool
	Indices     []int
	Metas       []core.ResultSetMeta
	Items       []core.OverviewItem
}

// Aggregator polls an execution's metadata. Fetch failures are logged and
// counted; the previous values stay in place until the next refresh.
type Aggregator struct {
	source core.MetadataSource
	logger *slog.Logger

	mu   sync.Mutex
	snap Snapshot
}

// NewAggregator creates an Aggregator reading from source.
func NewAggregator(source core.MetadataSource, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Aggregator{source: source, logger: logger}
}

// Reset forgets everything known about the previous execution.
func (a *Aggregator) Reset(executionID string) {
	a.mu.Lock()
	a.snap = Snapshot{ExecutionID: executionID}
	a.mu.Unlock()
}

// Snapshot returns the last known view.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

// Refresh re-reads session, indices and metadata for executionID. A
// different execution id starts from an empty view.
func (a *Aggregator) Refresh(ctx context.Context, executionID string) Snapshot {
	a.mu.Lock()
	snap := a.snap
	a.mu.Unlock()
	if snap.ExecutionID != executionID {
		snap = Snapshot{ExecutionID: executionID}
	}
	if executionID == "" {
		a.store(snap)
		return snap
	}

	if sess, err := a.source.GetSession(ctx, executionID); err != nil {
		a.swallow("session", executionID, err)
	} else {
		snap.Session = sess
		snap.HasSession = true
	}
	if indices, err := a.source.ListResultSetIndices(ctx, executionID); err != nil {
		a.swallow("indices", executionID, err)
	} else {
		snap.Indices = indices
	}
	if metas, err := a.source.ListResultSetsMeta(ctx, executionID); err != nil {
		a.swallow("meta", executionID, err)
	} else {
		snap.Metas = metas
	}

	snap.Items = Build(executionID, snap.Metas, snap.Indices, snap.Session.Status)
	a.store(snap)
	return snap
}

// KnownIndices returns the union of reported indices and metadata indices.
func (s Snapshot) KnownIndices() []int {
	out := make([]int, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, it.SetIndex)
	}
	return out
}

// Meta returns the metadata of setIndex when it is known.
func (s Snapshot) Meta(setIndex int) (core.ResultSetMeta, bool) {
	for _, m := range s.Metas {
		if m.SetIndex == setIndex {
			return m, true
		}
	}
	return core.ResultSetMeta{}, false
}

func (a *Aggregator) store(snap Snapshot) {
	a.mu.Lock()
	a.snap = snap
	a.mu.Unlock()
}

func (a *Aggregator) swallow(call, executionID string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	metrics.MetadataFetchErrors.WithLabelValues(call).Inc()
	a.logger.Warn("metadata refresh failed",
		slog.String("call", call),
		slog.String("execution", executionID),
		slog.String("error", err.Error()))
}
