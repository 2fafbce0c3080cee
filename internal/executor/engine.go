// Package executor runs console scripts against a database adapter and
// spools every statement's outcome into the state store. It is the
// execution engine the result-set delivery layer reads from.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/workbench/internal/notifier"
	"github.com/leapstack-labs/workbench/internal/state"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// Sentinel errors.
var (
	ErrExecutionNotFound = errors.New("execution not found")
	ErrResultSetNotFound = errors.New("result set not found")
	ErrEmptyScript       = errors.New("script contains no statements")
	ErrClosed            = errors.New("executor closed")
)

// Defaults applied to zero Config values.
const (
	DefaultSpoolLimit = 1_000_001
	DefaultSpoolBatch = 500
	DefaultChunkRows  = 500
)

// Config configures an Engine.
type Config struct {
	Adapter    core.Adapter
	Store      *state.SQLiteStore
	Logger     *slog.Logger
	SpoolLimit int64
	SpoolBatch int
}

// Engine executes scripts and serves their result sets.
type Engine struct {
	adapter    core.Adapter
	store      *state.SQLiteStore
	logger     *slog.Logger
	spoolLimit int64
	spoolBatch int

	version atomic.Int64
	notify  *notifier.Notifier

	mu      sync.Mutex
	running map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

var _ core.ExecutionEngine = (*Engine)(nil)

// New creates an Engine. Adapter and Store are required.
func New(cfg Config) (*Engine, error) {
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("executor: adapter is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("executor: store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.SpoolLimit <= 0 {
		cfg.SpoolLimit = DefaultSpoolLimit
	}
	if cfg.SpoolBatch <= 0 {
		cfg.SpoolBatch = DefaultSpoolBatch
	}
	return &Engine{
		adapter:    cfg.Adapter,
		store:      cfg.Store,
		logger:     cfg.Logger,
		spoolLimit: cfg.SpoolLimit,
		spoolBatch: cfg.SpoolBatch,
		notify:     notifier.New(),
		running:    make(map[string]context.CancelFunc),
	}, nil
}

// Submit records a new execution for tabID and runs its statements in the
// background. The returned ID is valid as soon as Submit returns.
func (e *Engine) Submit(ctx context.Context, tabID, script string) (string, error) {
	stmts := SplitStatements(script)
	if len(stmts) == 0 {
		return "", ErrEmptyScript
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrClosed
	}
	e.mu.Unlock()

	exec := &state.Execution{
		ID:        uuid.NewString(),
		TabID:     tabID,
		SQL:       script,
		Status:    core.ExecutionStatusRunning,
		Source:    e.adapter.DialectName(),
		StartedAt: time.Now(),
	}
	if err := e.store.CreateExecution(ctx, exec); err != nil {
		return "", err
	}

	// The run outlives the submitting request.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return "", ErrClosed
	}
	e.running[exec.ID] = cancel
	e.wg.Add(1)
	e.mu.Unlock()

	e.logger.Info("execution submitted",
		slog.String("execution", exec.ID),
		slog.String("tab", tabID),
		slog.Int("statements", len(stmts)))

	e.notify.Broadcast()
	go e.run(runCtx, exec, stmts)
	return exec.ID, nil
}

// Cancel stops a running execution. It reports whether one was running.
func (e *Engine) Cancel(executionID string) bool {
	e.mu.Lock()
	cancel, ok := e.running[executionID]
	e.mu.Unlock()
	if ok {
		e.logger.Info("canceling execution", slog.String("execution", executionID))
		cancel()
	}
	return ok
}

// Running reports whether an execution is still in flight.
func (e *Engine) Running(executionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.running[executionID]
	return ok
}

// Close cancels every running execution and waits for them to settle.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	for _, cancel := range e.running {
		cancel()
	}
	e.mu.Unlock()
	e.wg.Wait()
	return nil
}

// DataVersion increases after every statement that may have changed data.
func (e *Engine) DataVersion() int64 {
	return e.version.Load()
}

// Subscribe returns a channel pinged on every execution lifecycle change.
func (e *Engine) Subscribe() chan struct{} {
	return e.notify.Subscribe()
}

// Unsubscribe releases a channel obtained from Subscribe.
func (e *Engine) Unsubscribe(ch chan struct{}) {
	e.notify.Unsubscribe(ch)
}

// GetSession returns the execution-level view.
func (e *Engine) GetSession(ctx context.Context, executionID string) (core.Session, error) {
	exec, err := e.getExecution(ctx, executionID)
	if err != nil {
		return core.Session{}, err
	}
	return exec.Session(), nil
}

// ListResultSetIndices returns the registered result-set indices of an execution.
func (e *Engine) ListResultSetIndices(ctx context.Context, executionID string) ([]int, error) {
	return e.store.ListResultSetIndices(ctx, executionID)
}

// ListResultSetsMeta returns metadata for the finished result sets of an execution.
func (e *Engine) ListResultSetsMeta(ctx context.Context, executionID string) ([]core.ResultSetMeta, error) {
	sets, err := e.store.ListResultSets(ctx, executionID, true)
	if err != nil {
		return nil, err
	}
	metas := make([]core.ResultSetMeta, 0, len(sets))
	for _, rs := range sets {
		metas = append(metas, rs.Meta())
	}
	return metas, nil
}

// ListExecutions returns the newest executions of a tab.
func (e *Engine) ListExecutions(ctx context.Context, tabID string, limit int) ([]core.Session, error) {
	execs, err := e.store.ListExecutions(ctx, tabID, limit)
	if err != nil {
		return nil, err
	}
	sessions := make([]core.Session, 0, len(execs))
	for _, ex := range execs {
		sessions = append(sessions, ex.Session())
	}
	return sessions, nil
}

// GetResultRows streams spooled rows of one result set to opts.OnChunk.
// At most RowBudget+1 rows are delivered. While the statement is still
// running the read follows the spool until the statement finishes.
func (e *Engine) GetResultRows(ctx context.Context, executionID string, setIndex int, opts core.RowsOptions) error {
	if opts.OnChunk == nil {
		return fmt.Errorf("executor: OnChunk is required")
	}
	chunk := opts.ChunkRows
	if chunk <= 0 {
		chunk = DefaultChunkRows
	}
	limit := -1
	if opts.RowBudget > 0 {
		limit = opts.RowBudget + 1
	}

	ping := e.notify.Subscribe()
	defer e.notify.Unsubscribe(ping)

	var (
		after     int64
		delivered int
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Finish state is read before the rows so nothing spooled before
		// the finish can be missed.
		finished, err := e.resultSetFinished(ctx, executionID, setIndex)
		if err != nil {
			return err
		}

		for {
			n := chunk
			if limit >= 0 {
				if limit-delivered <= 0 {
					return nil
				}
				n = min(n, limit-delivered)
			}
			rows, last, err := e.store.ReadRows(ctx, executionID, setIndex, after, n)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				break
			}
			after = last
			delivered += len(rows)
			if err := opts.OnChunk(rows); err != nil {
				return err
			}
			if len(rows) < n {
				break
			}
		}

		if finished {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ping:
		}
	}
}

// resultSetFinished reports whether a result set's metadata is final. An
// index that is not registered yet counts as unfinished while the execution
// runs.
func (e *Engine) resultSetFinished(ctx context.Context, executionID string, setIndex int) (bool, error) {
	rs, err := e.store.GetResultSet(ctx, executionID, setIndex)
	if err == nil {
		return rs.Finished(), nil
	}
	if !errors.Is(err, state.ErrNotFound) {
		return false, err
	}
	exec, err := e.getExecution(ctx, executionID)
	if err != nil {
		return false, err
	}
	if exec.Status.Terminal() {
		return false, fmt.Errorf("result set %d of execution %s: %w", setIndex, executionID, ErrResultSetNotFound)
	}
	return false, nil
}

func (e *Engine) getExecution(ctx context.Context, executionID string) (*state.Execution, error) {
	exec, err := e.store.GetExecution(ctx, executionID)
	if errors.Is(err, state.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", executionID, ErrExecutionNotFound)
	}
	return exec, err
}

func (e *Engine) forget(executionID string) {
	e.mu.Lock()
	if cancel, ok := e.running[executionID]; ok {
		cancel()
		delete(e.running, executionID)
	}
	e.mu.Unlock()
}
