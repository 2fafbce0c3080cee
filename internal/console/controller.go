package console

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/leapstack-labs/workbench/internal/activeset"
	"github.com/leapstack-labs/workbench/internal/notifier"
	"github.com/leapstack-labs/workbench/internal/overview"
	"github.com/leapstack-labs/workbench/internal/resultcache"
	"github.com/leapstack-labs/workbench/internal/streaming"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// Controller drives one tab: its current execution, the selected result
// set and the rows loaded for it.
type Controller struct {
	wb      *Workbench
	tabID   string
	logger  *slog.Logger
	machine *activeset.Machine
	agg     *overview.Aggregator
	notify  *notifier.Notifier

	// mu serializes refreshes and navigation.
	mu     sync.Mutex
	script string
	budget int
}

func newController(wb *Workbench, tabID string, budget int) *Controller {
	logger := wb.logger.With(slog.String("tab", tabID))
	return &Controller{
		wb:      wb,
		tabID:   tabID,
		logger:  logger,
		machine: activeset.NewMachine(wb.registry, tabID, logger),
		agg:     overview.NewAggregator(wb.engine, logger),
		notify:  notifier.New(),
		budget:  budget,
	}
}

// TabID returns the tab the controller drives.
func (c *Controller) TabID() string { return c.tabID }

// ExecutionID returns the tab's current execution.
func (c *Controller) ExecutionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.ExecutionID()
}

// Run submits script and makes the new execution current.
func (c *Controller) Run(ctx context.Context, script string) (string, error) {
	if c.wb.ctx.Err() != nil {
		return "", ErrWorkbenchClosed
	}
	id, err := c.wb.engine.Submit(ctx, c.tabID, script)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.script = script
	c.mu.Unlock()

	c.SetExecution(ctx, id)
	return id, nil
}

// Rerun submits the last script again.
func (c *Controller) Rerun(ctx context.Context) (string, error) {
	c.mu.Lock()
	script := c.script
	c.mu.Unlock()
	if script == "" {
		return "", ErrNothingToRerun
	}
	return c.Run(ctx, script)
}

// Cancel stops the current execution. It reports whether one was running.
func (c *Controller) Cancel() bool {
	id := c.ExecutionID()
	if id == "" {
		return false
	}
	return c.wb.engine.Cancel(id)
}

// SetExecution makes executionID current. A new id resets the selection to
// the overview and cancels the tab's read.
func (c *Controller) SetExecution(ctx context.Context, executionID string) {
	c.mu.Lock()
	if c.machine.SetExecution(executionID) {
		c.wb.loader.Reset(c.tabID)
		c.agg.Reset(executionID)
		c.logger.Debug("execution changed", slog.String("execution", executionID))
	}
	c.refreshLocked(ctx)
	c.mu.Unlock()
	c.notify.Broadcast()
}

// Refresh re-polls the execution, evaluates the auto-jump and keeps the
// loader on the active result set.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.Lock()
	c.refreshLocked(ctx)
	c.mu.Unlock()
	c.notify.Broadcast()
}

func (c *Controller) refreshLocked(ctx context.Context) overview.Snapshot {
	snap := c.agg.Refresh(ctx, c.machine.ExecutionID())
	obs := activeset.Observation{Indices: snap.KnownIndices()}
	if snap.HasSession {
		obs.Status = snap.Session.Status
		obs.FinishedAt = snap.Session.FinishedAt
	}
	d := c.machine.Observe(obs)
	c.syncLoaderLocked(snap, d.State)
	return snap
}

// SelectResultSet shows result set index and claims the selection.
func (c *Controller) SelectResultSet(ctx context.Context, index int) error {
	if index < 0 {
		return c.SelectOverview(ctx)
	}
	c.mu.Lock()
	defer c.notify.Broadcast()
	defer c.mu.Unlock()

	if c.machine.ExecutionID() == "" {
		return ErrNoExecution
	}
	snap := c.agg.Snapshot()
	if !slices.Contains(snap.KnownIndices(), index) {
		snap = c.agg.Refresh(ctx, c.machine.ExecutionID())
		if !slices.Contains(snap.KnownIndices(), index) {
			return fmt.Errorf("result set %d: %w", index, ErrUnknownResultSet)
		}
	}
	st := c.machine.Select(index)
	c.syncLoaderLocked(snap, st)
	return nil
}

// SelectOverview shows the overview and claims the selection.
func (c *Controller) SelectOverview(_ context.Context) error {
	c.mu.Lock()
	defer c.notify.Broadcast()
	defer c.mu.Unlock()

	if c.machine.ExecutionID() == "" {
		return ErrNoExecution
	}
	st := c.machine.SelectOverview()
	c.syncLoaderLocked(c.agg.Snapshot(), st)
	return nil
}

// SetRowBudget clamps and applies a new budget. A lower budget truncates
// the buffer at once; a higher one reloads a truncated result.
func (c *Controller) SetRowBudget(_ context.Context, n int) int {
	n = streaming.ClampBudget(n)
	c.mu.Lock()
	c.budget = n
	if c.wb.Focused() == c.tabID || c.wb.Focused() == "" {
		if c.wb.loader.ApplyBudget(c.tabID, n) {
			c.startLocked(c.agg.Snapshot(), c.machine.State().ActiveSet)
		}
	}
	c.mu.Unlock()
	c.notify.Broadcast()
	return n
}

// RowBudget returns the tab's budget.
func (c *Controller) RowBudget() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.budget
}

// syncLoaderLocked points the loader at the active result set. Showing the
// overview cancels the tab's read.
func (c *Controller) syncLoaderLocked(snap overview.Snapshot, st activeset.State) {
	if focused := c.wb.Focused(); focused != "" && focused != c.tabID {
		return
	}
	view := c.wb.loader.View(c.tabID)
	if st.IsOverview() || c.machine.ExecutionID() == "" {
		if view.Key != resultcache.NoKey {
			c.wb.loader.Reset(c.tabID)
		}
		return
	}
	want := resultcache.KeyFor(c.tabID, c.machine.ExecutionID(), st.ActiveSet)
	if view.Key == want {
		return
	}
	c.startLocked(snap, st.ActiveSet)
}

func (c *Controller) startLocked(snap overview.Snapshot, index int) {
	if index < 0 || c.machine.ExecutionID() == "" {
		return
	}
	req := streaming.Request{
		TabID:       c.tabID,
		ExecutionID: c.machine.ExecutionID(),
		SetIndex:    index,
		RowBudget:   c.budget,
	}
	if snap.HasSession {
		req.ExecutionStatus = snap.Session.Status
		req.Meta = resultcache.MetaFromSession(snap.Session)
	}
	c.wb.loader.Start(c.wb.ctx, req)
}

// Watch refreshes the tab on engine changes and on the poll interval
// while the execution runs. It returns when ctx is done.
func (c *Controller) Watch(ctx context.Context) {
	ping := c.wb.engine.Subscribe()
	defer c.wb.engine.Unsubscribe(ping)
	ticker := time.NewTicker(c.wb.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wb.ctx.Done():
			return
		case <-ping:
			c.Refresh(ctx)
		case <-ticker.C:
			if c.running() {
				c.Refresh(ctx)
			}
		}
	}
}

func (c *Controller) running() bool {
	snap := c.agg.Snapshot()
	return snap.ExecutionID != "" && (!snap.HasSession || !snap.Session.Status.Terminal())
}

// Changes returns a channel pinged whenever the tab's view may have
// changed. It is closed when ctx is done.
func (c *Controller) Changes(ctx context.Context) <-chan struct{} {
	return notifier.Merge(ctx, c.notify, c.wb.loader, c.wb.registry)
}

// Wait blocks until the execution has finished and the active result set
// has settled.
func (c *Controller) Wait(ctx context.Context) error {
	changes, stop := c.changesUntil(ctx)
	defer stop()
	ping := c.wb.engine.Subscribe()
	defer c.wb.engine.Unsubscribe(ping)
	ticker := time.NewTicker(c.wb.poll)
	defer ticker.Stop()

	for {
		c.Refresh(ctx)
		v := c.View()
		if v.ExecutionID == "" {
			return ErrNoExecution
		}
		if v.HasSession && v.Session.Status.Terminal() && !v.Loading && v.RowsFlushed() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ping:
		case <-changes:
		case <-ticker.C:
		}
	}
}

func (c *Controller) changesUntil(ctx context.Context) (<-chan struct{}, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	return c.Changes(ctx), cancel
}

// View is the presentation snapshot of a tab.
type View struct {
	TabID       string
	ExecutionID string
	Session     core.Session
	HasSession  bool

	Overview []core.OverviewItem
	Active   activeset.State
	Meta     *core.ResultSetMeta
	Columns  []string

	Rows        []core.ResultRow
	Buffered    int
	Loading     bool
	Truncated   bool
	FullyLoaded bool
	FromCache   bool
	Error       string
	RowBudget   int

	Debug *DebugInfo
}

// RowsFlushed reports whether every buffered row is visible.
func (v View) RowsFlushed() bool {
	return len(v.Rows) == v.Buffered
}

// DebugInfo exposes loader and cache internals verbatim.
type DebugInfo struct {
	CacheKey         string
	Buffered         int
	Visible          int
	ReadStartedAt    time.Time
	TimeToFirstChunk time.Duration
	LastFlushAt      time.Time
	Flushes          int
	CacheEntries     int
	CacheKeys        []string
	DataVersion      int64
	EngineVersion    int64
	UserPicked       bool
}

// View returns the tab's current presentation snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	snap := c.agg.Snapshot()
	st := c.machine.State()
	budget := c.budget
	c.mu.Unlock()

	v := View{
		TabID:       c.tabID,
		ExecutionID: snap.ExecutionID,
		Session:     snap.Session,
		HasSession:  snap.HasSession,
		Overview:    snap.Items,
		Active:      st,
		RowBudget:   budget,
	}
	if snap.HasSession && snap.Session.Error != "" {
		v.Error = snap.Session.Error
	}
	if !st.IsOverview() {
		if m, ok := snap.Meta(st.ActiveSet); ok {
			v.Meta = &m
			v.Columns = m.Columns
		}
	}

	lv := c.wb.loader.View(c.tabID)
	if !st.IsOverview() && lv.ExecutionID == snap.ExecutionID && lv.SetIndex == st.ActiveSet {
		v.Rows = lv.Rows
		v.Buffered = lv.Buffered
		v.Loading = lv.Loading
		v.Truncated = lv.Truncated
		v.FullyLoaded = lv.FullyLoaded
		v.FromCache = lv.FromCache
		if lv.Err != nil {
			v.Error = lv.Err.Error()
		}
		if len(v.Columns) == 0 && len(lv.Rows) > 0 {
			v.Columns = rowColumns(lv.Rows[0].Data)
		}
	}

	if c.wb.Debug() {
		keys := c.wb.cache.Keys()
		v.Debug = &DebugInfo{
			CacheKey:         string(lv.Key),
			Buffered:         lv.Buffered,
			Visible:          len(lv.Rows),
			ReadStartedAt:    lv.StartedAt,
			TimeToFirstChunk: lv.TimeToFirstChunk(),
			LastFlushAt:      lv.LastFlushAt,
			Flushes:          lv.Flushes,
			CacheEntries:     len(keys),
			CacheKeys:        make([]string, len(keys)),
			DataVersion:      lv.DataVersion,
			EngineVersion:    c.wb.engine.DataVersion(),
			UserPicked:       st.UserPicked,
		}
		for i, k := range keys {
			v.Debug.CacheKeys[i] = string(k)
		}
	}
	return v
}

func rowColumns(row core.Row) []string {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
