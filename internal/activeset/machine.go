package activeset

import (
	"log/slog"
	"slices"
	"time"

	"github.com/leapstack-labs/workbench/internal/metrics"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// Observation is one polled view of an execution.
type Observation struct {
	Status     core.ExecutionStatus
	FinishedAt *time.Time
	// Indices are the result-set indices currently known, ascending.
	Indices []int
}

// Decision reports what Observe changed.
type Decision struct {
	State          State
	Jumped         bool
	ForcedOverview bool
	Reclaimed      bool
}

// Machine drives the selection of one tab's current execution. It is not
// safe for concurrent use; the owning controller serializes calls.
type Machine struct {
	registry    *Registry
	tabID       string
	executionID string
	logger      *slog.Logger

	lastStatus     core.ExecutionStatus
	lastFinishedAt time.Time
	lastCount      int
	lastMax        int
	handled        *time.Time
}

// NewMachine creates a Machine for tabID.
func NewMachine(registry *Registry, tabID string, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Machine{
		registry: registry,
		tabID:    tabID,
		logger:   logger,
		lastMax:  -1,
	}
}

// ExecutionID returns the execution being tracked.
func (m *Machine) ExecutionID() string {
	return m.executionID
}

// SetExecution switches to executionID. A different id resets the
// selection to an unclaimed overview and reports true.
func (m *Machine) SetExecution(executionID string) bool {
	if executionID == m.executionID {
		return false
	}
	m.executionID = executionID
	m.lastStatus = ""
	m.lastFinishedAt = time.Time{}
	m.lastCount = 0
	m.lastMax = -1
	m.handled = nil
	if executionID != "" {
		m.registry.ResetRun(m.tabID, executionID)
	}
	return true
}

// State returns the current selection.
func (m *Machine) State() State {
	if m.executionID == "" {
		return State{ActiveSet: Overview}
	}
	return m.registry.Get(m.tabID, m.executionID)
}

// Select is the user navigation to index.
func (m *Machine) Select(index int) State {
	if m.executionID == "" {
		return State{ActiveSet: Overview}
	}
	m.registry.Select(m.tabID, m.executionID, index)
	return m.State()
}

// SelectOverview is the user navigation to the overview.
func (m *Machine) SelectOverview() State {
	return m.Select(Overview)
}

// Observe applies one polled view of the execution and evaluates the
// auto-jump to the latest result set.
func (m *Machine) Observe(obs Observation) Decision {
	if m.executionID == "" {
		return Decision{State: State{ActiveSet: Overview}}
	}
	var d Decision

	// An empty status means the session could not be read; the last known
	// one still holds.
	status := obs.Status
	if status == "" {
		status = m.lastStatus
	}

	// A finished run that starts over begins unclaimed. Fresh executions
	// are reset by SetExecution.
	if status == core.ExecutionStatusRunning && m.lastStatus.Terminal() {
		m.registry.ClearUserPicked(m.tabID, m.executionID)
		d.Reclaimed = true
	}

	st := m.registry.Get(m.tabID, m.executionID)
	if !st.IsOverview() && !slices.Contains(obs.Indices, st.ActiveSet) {
		m.registry.ForceOverview(m.tabID, m.executionID)
		st.ActiveSet = Overview
		d.ForcedOverview = true
	}

	finishedAt := m.lastFinishedAt
	if obs.FinishedAt != nil {
		finishedAt = *obs.FinishedAt
	} else if obs.Status != "" {
		finishedAt = time.Time{}
	}
	justFinished := (!finishedAt.IsZero() && !finishedAt.Equal(m.lastFinishedAt)) ||
		(m.lastStatus == core.ExecutionStatusRunning && status.Terminal())

	maxIndex := -1
	if len(obs.Indices) > 0 {
		maxIndex = slices.Max(obs.Indices)
	}
	resultsIncreased := len(obs.Indices) > m.lastCount || maxIndex > m.lastMax

	target := max(maxIndex, 0)
	handled := m.handled != nil && m.handled.Equal(finishedAt)

	if justFinished && !st.UserPicked && !handled && (resultsIncreased || st.ActiveSet != target) {
		m.registry.AutoSelect(m.tabID, m.executionID, target)
		st.ActiveSet = target
		m.handled = &finishedAt
		d.Jumped = true
		metrics.AutoJumps.Inc()
		m.logger.Debug("auto-selected latest result set",
			slog.String("tab", m.tabID),
			slog.String("execution", m.executionID),
			slog.Int("index", target))
	}

	m.lastStatus = status
	m.lastFinishedAt = finishedAt
	m.lastCount = len(obs.Indices)
	m.lastMax = maxIndex

	d.State = st
	return d
}
