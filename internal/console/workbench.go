// Package console wires the result cache, active-set registry, streaming
// loader and overview aggregator into per-tab controllers that the web,
// REPL and terminal front ends drive.
package console

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/leapstack-labs/workbench/internal/activeset"
	"github.com/leapstack-labs/workbench/internal/resultcache"
	"github.com/leapstack-labs/workbench/internal/streaming"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// Errors returned by controllers.
var (
	ErrNoExecution      = errors.New("no execution in this tab")
	ErrUnknownResultSet = errors.New("result set not known for this execution")
	ErrNothingToRerun   = errors.New("nothing to rerun")
	ErrWorkbenchClosed  = errors.New("workbench closed")
)

const (
	defaultPollInterval  = 500 * time.Millisecond
	defaultHistoryLength = 20
)

// Engine is the execution engine a workbench drives.
type Engine interface {
	core.ExecutionEngine
	Submit(ctx context.Context, tabID, script string) (string, error)
	Cancel(executionID string) bool
	Subscribe() chan struct{}
	Unsubscribe(ch chan struct{})
	ListExecutions(ctx context.Context, tabID string, limit int) ([]core.Session, error)
}

// Config configures a Workbench.
type Config struct {
	Engine       Engine
	Logger       *slog.Logger
	RowBudget    int
	ChunkRows    int
	CacheEntries int
	PollInterval time.Duration
	Debug        bool
	Frames       streaming.Scheduler
}

// Workbench owns the process-wide stores and one Controller per tab.
type Workbench struct {
	engine   Engine
	logger   *slog.Logger
	cache    *resultcache.Store
	registry *activeset.Registry
	loader   *streaming.Loader
	poll     time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	tabs      map[string]*Controller
	focused   string
	rowBudget int
	debug     bool
	closed    bool
}

// New creates a Workbench.
func New(cfg Config) *Workbench {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.RowBudget <= 0 {
		cfg.RowBudget = streaming.DefaultRowBudget
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	cache := resultcache.New(
		resultcache.WithMaxEntries(cfg.CacheEntries),
		resultcache.WithLogger(cfg.Logger.With(slog.String("component", "cache"))),
	)
	ctx, cancel := context.WithCancel(context.Background())
	return &Workbench{
		engine:   cfg.Engine,
		logger:   cfg.Logger,
		cache:    cache,
		registry: activeset.NewRegistry(),
		loader: streaming.New(streaming.Config{
			Engine:    cfg.Engine,
			Cache:     cache,
			Frames:    cfg.Frames,
			Logger:    cfg.Logger.With(slog.String("component", "loader")),
			ChunkRows: cfg.ChunkRows,
		}),
		poll:      cfg.PollInterval,
		ctx:       ctx,
		cancel:    cancel,
		tabs:      make(map[string]*Controller),
		rowBudget: streaming.ClampBudget(cfg.RowBudget),
		debug:     cfg.Debug,
	}
}

// Tab returns the controller of tabID, creating it on first use.
func (w *Workbench) Tab(tabID string) *Controller {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.tabs[tabID]
	if !ok {
		c = newController(w, tabID, w.rowBudget)
		w.tabs[tabID] = c
	}
	return c
}

// Tabs returns the known tab ids in order.
func (w *Workbench) Tabs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, 0, len(w.tabs))
	for id := range w.tabs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Focus makes tabID the visible tab. The previous tab's read is canceled
// and its buffer dropped; cached slices survive for its return.
func (w *Workbench) Focus(ctx context.Context, tabID string) *Controller {
	w.mu.Lock()
	prev := w.focused
	w.focused = tabID
	w.mu.Unlock()

	if prev != "" && prev != tabID {
		w.loader.Reset(prev)
		w.logger.Debug("tab switched", slog.String("from", prev), slog.String("to", tabID))
	}
	c := w.Tab(tabID)
	c.Refresh(ctx)
	return c
}

// Focused returns the visible tab id.
func (w *Workbench) Focused() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// SetRowBudget changes the default budget and applies it to every tab.
func (w *Workbench) SetRowBudget(ctx context.Context, n int) int {
	n = streaming.ClampBudget(n)
	w.mu.Lock()
	w.rowBudget = n
	tabs := make([]*Controller, 0, len(w.tabs))
	for _, c := range w.tabs {
		tabs = append(tabs, c)
	}
	w.mu.Unlock()

	for _, c := range tabs {
		c.SetRowBudget(ctx, n)
	}
	return n
}

// RowBudget returns the default budget of new tabs.
func (w *Workbench) RowBudget() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowBudget
}

// SetDebug toggles the debug bundle in views.
func (w *Workbench) SetDebug(on bool) {
	w.mu.Lock()
	w.debug = on
	w.mu.Unlock()
}

// Debug reports whether views carry the debug bundle.
func (w *Workbench) Debug() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.debug
}

// Cache returns the shared result cache.
func (w *Workbench) Cache() *resultcache.Store { return w.cache }

// Registry returns the shared active-set registry.
func (w *Workbench) Registry() *activeset.Registry { return w.registry }

// Loader returns the shared streaming loader.
func (w *Workbench) Loader() *streaming.Loader { return w.loader }

// Engine returns the execution engine.
func (w *Workbench) Engine() Engine { return w.engine }

// History returns the newest executions of a tab.
func (w *Workbench) History(ctx context.Context, tabID string) ([]core.Session, error) {
	return w.engine.ListExecutions(ctx, tabID, defaultHistoryLength)
}

// Close cancels every read and watcher.
func (w *Workbench) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.loader.Close()
}
