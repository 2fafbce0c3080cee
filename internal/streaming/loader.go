// Package streaming delivers the rows of one result set per tab into a
// bounded buffer. Reads are chunked, cancelable and persisted to the result
// cache as they progress; the visible buffer is refreshed at most once per
// paint frame.
package streaming

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/workbench/internal/metrics"
	"github.com/leapstack-labs/workbench/internal/notifier"
	"github.com/leapstack-labs/workbench/internal/resultcache"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// Sentinel errors returned from chunk callbacks to stop a read.
var (
	ErrCanceled        = errors.New("read canceled")
	ErrBudgetExhausted = errors.New("row budget exhausted")
)

// DefaultChunkRows is the preferred chunk size requested from the engine.
const DefaultChunkRows = 1000

// Config configures a Loader.
type Config struct {
	Engine    core.ExecutionEngine
	Cache     *resultcache.Store
	Frames    Scheduler
	Logger    *slog.Logger
	ChunkRows int
}

// Request names the result set to load.
type Request struct {
	TabID       string
	ExecutionID string
	SetIndex    int
	RowBudget   int

	// ExecutionStatus and Meta are stored with the cached slice.
	ExecutionStatus core.ExecutionStatus
	Meta            resultcache.Meta
}

// Key returns the cache key of the request.
func (r Request) Key() resultcache.Key {
	return resultcache.KeyFor(r.TabID, r.ExecutionID, r.SetIndex)
}

// Loader runs at most one read per tab.
type Loader struct {
	engine    core.ExecutionEngine
	cache     *resultcache.Store
	frames    Scheduler
	logger    *slog.Logger
	chunkRows int

	mu     sync.Mutex
	tabs   map[string]*tabState
	closed bool
	wg     sync.WaitGroup
	notify *notifier.Notifier
}

// New creates a Loader. Engine and Cache are required.
func New(cfg Config) *Loader {
	if cfg.Frames == nil {
		cfg.Frames = TimerFrames{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ChunkRows <= 0 {
		cfg.ChunkRows = DefaultChunkRows
	}
	return &Loader{
		engine:    cfg.Engine,
		cache:     cfg.Cache,
		frames:    cfg.Frames,
		logger:    cfg.Logger,
		chunkRows: cfg.ChunkRows,
		tabs:      make(map[string]*tabState),
		notify:    notifier.New(),
	}
}

// Token tracks one started read.
type Token struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func finishedToken() *Token {
	t := &Token{cancel: func() {}, done: make(chan struct{})}
	close(t.done)
	return t
}

// Cancel stops the read. Chunks that arrive afterwards are dropped.
func (t *Token) Cancel() { t.cancel() }

// Done is closed once the read has settled.
func (t *Token) Done() <-chan struct{} { return t.done }

// Err returns the read's failure after Done is closed. Cancellation and
// budget truncation are not failures.
func (t *Token) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Start cancels the tab's current read, clears its buffer and loads req,
// from the cache when a current entry exists.
func (l *Loader) Start(ctx context.Context, req Request) *Token {
	if req.RowBudget <= 0 {
		req.RowBudget = DefaultRowBudget
	}
	key := req.Key()
	version := l.engine.DataVersion()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return finishedToken()
	}
	ts := l.tab(req.TabID)
	ts.invalidate()
	ts.begin(req, key, version)

	if entry, ok := l.cache.Get(key); ok {
		if hydratable(entry, req.RowBudget, version) {
			ts.hydrate(entry)
			l.mu.Unlock()
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			l.logger.Debug("result served from cache", slog.String("key", string(key)), slog.Int("rows", len(entry.Results)))
			l.notify.Broadcast()
			return finishedToken()
		}
		metrics.CacheLookups.WithLabelValues("stale").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	readCtx, cancel := context.WithCancel(ctx)
	ts.cancel = cancel
	tok := &Token{cancel: cancel, done: make(chan struct{})}
	gen := ts.gen
	l.wg.Add(1)
	l.mu.Unlock()

	l.logger.Debug("starting read",
		slog.String("key", string(key)),
		slog.Int("budget", req.RowBudget))
	l.notify.Broadcast()

	go l.read(readCtx, req, gen, tok)
	return tok
}

// hydratable reports whether a cached slice can stand in for a fresh read
// under budget. Partial slices and slices truncated under a smaller budget
// cannot.
func hydratable(e resultcache.Entry, budget int, version int64) bool {
	if e.DataVersion != version || !e.FullyLoaded {
		return false
	}
	if !e.Meta.IsTruncated() {
		return true
	}
	return e.Meta.RowBudget != nil && *e.Meta.RowBudget >= budget
}

func (l *Loader) read(ctx context.Context, req Request, gen uint64, tok *Token) {
	defer l.wg.Done()
	defer close(tok.done)
	defer tok.cancel()

	err := l.engine.GetResultRows(ctx, req.ExecutionID, req.SetIndex, core.RowsOptions{
		RowBudget: req.RowBudget,
		ChunkRows: l.chunkRows,
		OnChunk: func(rows []core.Row) error {
			return l.applyChunk(ctx, req.TabID, gen, rows)
		},
	})

	outcome := "complete"
	switch {
	case err == nil:
	case errors.Is(err, ErrBudgetExhausted):
		outcome = "truncated"
		err = nil
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled), ctx.Err() != nil:
		outcome = "canceled"
		err = nil
	default:
		outcome = "failed"
	}
	tok.err = err
	metrics.LoaderReads.WithLabelValues(outcome).Inc()

	l.mu.Lock()
	ts := l.tabs[req.TabID]
	if ts == nil || ts.gen != gen {
		// A newer read owns the buffer.
		l.mu.Unlock()
		return
	}
	ts.loading = false
	ts.cancel = nil
	switch outcome {
	case "complete":
		ts.fullyLoaded = true
	case "failed":
		ts.err = err
	}
	l.persist(ts)
	schedule := ts.requestFlush()
	l.mu.Unlock()

	if err != nil {
		l.logger.Warn("result read failed",
			slog.String("key", string(req.Key())),
			slog.String("error", err.Error()))
	}
	l.logger.Debug("read settled", slog.String("key", string(req.Key())), slog.String("outcome", outcome))
	if schedule {
		l.scheduleFlush(req.TabID, gen)
	}
	l.notify.Broadcast()
}

// applyChunk appends one chunk to the tab's buffer. It is all-or-nothing
// with respect to cancellation: the check and the append happen under the
// same lock.
func (l *Loader) applyChunk(ctx context.Context, tabID string, gen uint64, rows []core.Row) error {
	l.mu.Lock()
	ts := l.tabs[tabID]
	if ts == nil || ts.gen != gen || ctx.Err() != nil {
		l.mu.Unlock()
		return ErrCanceled
	}
	if ts.firstChunkAt.IsZero() {
		ts.firstChunkAt = time.Now()
	}

	var stop error
	remaining := ts.req.RowBudget - len(ts.buf)
	if remaining <= 0 {
		ts.truncated = true
		stop = ErrBudgetExhausted
	} else {
		take := min(len(rows), remaining)
		for _, r := range rows[:take] {
			ts.buf = append(ts.buf, core.ResultRow{TabID: tabID, RID: ts.nextRID, Data: r})
			ts.nextRID++
		}
		metrics.LoaderRows.Add(float64(take))
		if take < len(rows) {
			ts.truncated = true
			stop = ErrBudgetExhausted
		}
	}
	if stop != nil {
		ts.fullyLoaded = true
		ts.loading = false
		if ts.cancel != nil {
			ts.cancel()
		}
	}

	l.persist(ts)
	schedule := ts.requestFlush()
	l.mu.Unlock()

	if schedule {
		l.scheduleFlush(tabID, gen)
	}
	return stop
}

// persist writes the tab's buffer to the cache. Callers hold l.mu.
func (l *Loader) persist(ts *tabState) {
	if ts.key == resultcache.NoKey {
		return
	}
	patch := resultcache.Patch{
		Results:     ts.buf[:len(ts.buf):len(ts.buf)],
		Meta:        ts.req.Meta.Merge(resultcache.Meta{Truncated: core.Ptr(ts.truncated), RowBudget: core.Ptr(ts.req.RowBudget)}),
		FullyLoaded: core.Ptr(ts.fullyLoaded),
		DataVersion: core.Ptr(ts.dataVersion),
	}
	if patch.Results == nil {
		patch.Results = []core.ResultRow{}
	}
	if ts.req.ExecutionStatus != "" {
		patch.ExecutionStatus = core.Ptr(ts.req.ExecutionStatus)
	}
	l.cache.Touch(ts.key, patch)
}

func (l *Loader) scheduleFlush(tabID string, gen uint64) {
	l.frames.Schedule(func() { l.flush(tabID, gen) })
}

// flush makes the buffer visible. Flushes scheduled by a superseded read
// are ignored.
func (l *Loader) flush(tabID string, gen uint64) {
	l.mu.Lock()
	ts := l.tabs[tabID]
	if ts == nil || ts.gen != gen {
		l.mu.Unlock()
		return
	}
	ts.publish()
	l.mu.Unlock()

	metrics.LoaderFlushes.Inc()
	l.notify.Broadcast()
}

// ApplyBudget changes the tab's row budget. A lower budget truncates the
// buffer at once and cancels the read. It reports whether the buffer must
// be reloaded to honor budget: either it was truncated under a smaller
// budget, or a read started under a smaller budget was in flight. The
// engine caps a read at its starting budget, so such a read is canceled.
func (l *Loader) ApplyBudget(tabID string, budget int) (reload bool) {
	if budget <= 0 {
		budget = DefaultRowBudget
	}
	l.mu.Lock()
	ts, ok := l.tabs[tabID]
	if !ok {
		l.mu.Unlock()
		return false
	}
	prev := ts.req.RowBudget
	ts.req.RowBudget = budget

	changed := false
	if len(ts.buf) > budget {
		if ts.loading {
			ts.invalidate()
		}
		buf := make([]core.ResultRow, budget)
		copy(buf, ts.buf)
		ts.buf = buf
		ts.truncated = true
		ts.fullyLoaded = true
		ts.publish()
		l.persist(ts)
		changed = true
	} else if ts.loading && budget > prev {
		ts.invalidate()
		reload = true
	} else {
		reload = ts.truncated && !ts.loading && budget > len(ts.buf)
	}
	l.mu.Unlock()

	if changed {
		l.logger.Debug("buffer truncated to new budget", slog.String("tab", tabID), slog.Int("budget", budget))
		l.notify.Broadcast()
	}
	return reload
}

// Cancel stops the tab's read and keeps what was buffered.
func (l *Loader) Cancel(tabID string) {
	l.mu.Lock()
	ts, ok := l.tabs[tabID]
	if !ok || !ts.loading {
		l.mu.Unlock()
		return
	}
	ts.invalidate()
	ts.publish()
	l.persist(ts)
	l.mu.Unlock()
	l.notify.Broadcast()
}

// Reset cancels the tab's read and drops its buffer. Cached slices stay.
func (l *Loader) Reset(tabID string) {
	l.mu.Lock()
	ts, ok := l.tabs[tabID]
	if !ok {
		l.mu.Unlock()
		return
	}
	ts.invalidate()
	ts.begin(Request{TabID: tabID, SetIndex: -1}, resultcache.NoKey, 0)
	ts.loading = false
	ts.publish()
	l.mu.Unlock()
	l.notify.Broadcast()
}

// View returns the presentation snapshot of a tab.
func (l *Loader) View(tabID string) View {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts, ok := l.tabs[tabID]
	if !ok {
		return View{TabID: tabID, SetIndex: -1}
	}
	return ts.view()
}

// Subscribe returns a channel pinged whenever a view may have changed.
func (l *Loader) Subscribe() chan struct{} {
	return l.notify.Subscribe()
}

// Unsubscribe releases a channel obtained from Subscribe.
func (l *Loader) Unsubscribe(ch chan struct{}) {
	l.notify.Unsubscribe(ch)
}

// Close cancels every read and waits for them to settle.
func (l *Loader) Close() {
	l.mu.Lock()
	l.closed = true
	for _, ts := range l.tabs {
		ts.invalidate()
	}
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Loader) tab(tabID string) *tabState {
	ts, ok := l.tabs[tabID]
	if !ok {
		ts = &tabState{}
		l.tabs[tabID] = ts
	}
	return ts
}
