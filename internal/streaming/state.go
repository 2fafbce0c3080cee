package streaming

import (
	"context"
	"time"

	"github.com/leapstack-labs/workbench/internal/resultcache"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// View is a tab's buffer as the presentation layer sees it. Rows holds
// only flushed rows and is never modified after the View is taken.
type View struct {
	TabID       string
	ExecutionID string
	SetIndex    int
	Key         resultcache.Key
	RowBudget   int

	Rows     []core.ResultRow
	Buffered int

	Loading     bool
	Truncated   bool
	FullyLoaded bool
	FromCache   bool
	Err         error

	StartedAt    time.Time
	FirstChunkAt time.Time
	LastFlushAt  time.Time
	Flushes      int
	DataVersion  int64
}

// TimeToFirstChunk returns how long the read waited for its first rows.
func (v View) TimeToFirstChunk() time.Duration {
	if v.FirstChunkAt.IsZero() || v.StartedAt.IsZero() {
		return 0
	}
	return v.FirstChunkAt.Sub(v.StartedAt)
}

// tabState is one tab's read. Every field is guarded by Loader.mu.
type tabState struct {
	// gen identifies the read that owns the buffer.
	gen    uint64
	cancel context.CancelFunc

	req         Request
	key         resultcache.Key
	dataVersion int64

	// buf only grows within one read; truncation and reset allocate anew so
	// published views stay intact.
	buf     []core.ResultRow
	visible int
	nextRID int64

	loading      bool
	truncated    bool
	fullyLoaded  bool
	fromCache    bool
	flushPending bool
	err          error

	startedAt    time.Time
	firstChunkAt time.Time
	lastFlushAt  time.Time
	flushes      int
}

// invalidate cancels the current read and orphans its late chunks.
func (ts *tabState) invalidate() {
	if ts.cancel != nil {
		ts.cancel()
		ts.cancel = nil
	}
	ts.gen++
	ts.loading = false
	ts.flushPending = false
}

// begin clears the buffer for a new read of req.
func (ts *tabState) begin(req Request, key resultcache.Key, version int64) {
	ts.req = req
	ts.key = key
	ts.dataVersion = version
	ts.buf = nil
	ts.visible = 0
	ts.nextRID = 0
	ts.loading = true
	ts.truncated = false
	ts.fullyLoaded = false
	ts.fromCache = false
	ts.flushPending = false
	ts.err = nil
	ts.startedAt = time.Now()
	ts.firstChunkAt = time.Time{}
	ts.lastFlushAt = time.Time{}
	ts.flushes = 0
}

// hydrate fills the buffer from a cached slice, trimmed to the budget.
func (ts *tabState) hydrate(e resultcache.Entry) {
	rows := e.Results
	ts.truncated = e.Meta.IsTruncated()
	if budget := ts.req.RowBudget; len(rows) > budget {
		rows = rows[:budget:budget]
		ts.truncated = true
	}
	ts.buf = rows
	ts.nextRID = int64(len(rows))
	ts.loading = false
	ts.fullyLoaded = true
	ts.fromCache = true
	ts.publish()
}

// requestFlush marks a flush pending and reports whether one must be
// scheduled.
func (ts *tabState) requestFlush() bool {
	if ts.flushPending {
		return false
	}
	ts.flushPending = true
	return true
}

// publish makes every buffered row visible.
func (ts *tabState) publish() {
	ts.visible = len(ts.buf)
	ts.flushPending = false
	ts.lastFlushAt = time.Now()
	ts.flushes++
}

func (ts *tabState) view() View {
	return View{
		TabID:        ts.req.TabID,
		ExecutionID:  ts.req.ExecutionID,
		SetIndex:     ts.req.SetIndex,
		Key:          ts.key,
		RowBudget:    ts.req.RowBudget,
		Rows:         ts.buf[:ts.visible:ts.visible],
		Buffered:     len(ts.buf),
		Loading:      ts.loading,
		Truncated:    ts.truncated,
		FullyLoaded:  ts.fullyLoaded,
		FromCache:    ts.fromCache,
		Err:          ts.err,
		StartedAt:    ts.startedAt,
		FirstChunkAt: ts.firstChunkAt,
		LastFlushAt:  ts.lastFlushAt,
		Flushes:      ts.flushes,
		DataVersion:  ts.dataVersion,
	}
}
