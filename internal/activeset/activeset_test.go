package activeset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/workbench/internal/testutil"
	"github.com/leapstack-labs/workbench/pkg/core"
)

var finished = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func running(indices ...int) Observation {
	return Observation{Status: core.ExecutionStatusRunning, Indices: indices}
}

func done(at time.Time, indices ...int) Observation {
	return Observation{Status: core.ExecutionStatusSuccess, FinishedAt: &at, Indices: indices}
}

func newMachine(t *testing.T) (*Machine, *Registry) {
	t.Helper()
	reg := NewRegistry()
	m := NewMachine(reg, "T1", testutil.NewTestLogger(t))
	require.True(t, m.SetExecution("E1"))
	return m, reg
}

func TestRegistry_Defaults(t *testing.T) {
	reg := NewRegistry()

	st := reg.Get("T1", "E1")
	assert.Equal(t, Overview, st.ActiveSet)
	assert.False(t, st.UserPicked)
	assert.True(t, st.IsOverview())
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_Transitions(t *testing.T) {
	reg := NewRegistry()

	reg.Select("T1", "E1", 2)
	assert.Equal(t, State{ActiveSet: 2, UserPicked: true}, reg.Get("T1", "E1"))

	reg.AutoSelect("T1", "E1", 3)
	assert.Equal(t, State{ActiveSet: 3, UserPicked: true}, reg.Get("T1", "E1"), "auto selection keeps the claim")

	reg.ForceOverview("T1", "E1")
	assert.Equal(t, State{ActiveSet: Overview, UserPicked: true}, reg.Get("T1", "E1"))

	reg.ClearUserPicked("T1", "E1")
	assert.Equal(t, State{ActiveSet: Overview}, reg.Get("T1", "E1"))

	reg.Select("T1", "E1", -7)
	assert.Equal(t, Overview, reg.Get("T1", "E1").ActiveSet)

	reg.ResetRun("T1", "E1")
	assert.Equal(t, State{ActiveSet: Overview}, reg.Get("T1", "E1"))

	reg.Select("T2", "E1", 1)
	assert.Equal(t, 2, reg.Len())
	reg.Forget("T2", "E1")
	assert.Equal(t, 1, reg.Len())
	reg.Clear()
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_Subscribe(t *testing.T) {
	reg := NewRegistry()
	ping := reg.Subscribe()
	defer reg.Unsubscribe(ping)

	reg.Select("T1", "E1", 0)
	select {
	case <-ping:
	default:
		t.Fatal("expected ping after select")
	}
}

func TestMachine_IncrementalFinishJumpsToLast(t *testing.T) {
	m, _ := newMachine(t)

	assert.False(t, m.Observe(running(0)).Jumped)
	assert.False(t, m.Observe(running(0, 1)).Jumped)
	d := m.Observe(done(finished, 0, 1, 2))

	assert.True(t, d.Jumped)
	assert.Equal(t, State{ActiveSet: 2}, m.State())
}

func TestMachine_FinishWithoutNewResults(t *testing.T) {
	m, _ := newMachine(t)

	m.Observe(running(0, 1, 2))
	d := m.Observe(done(finished, 0, 1, 2))

	assert.True(t, d.Jumped, "active differs from target")
	assert.Equal(t, 2, d.State.ActiveSet)
}

func TestMachine_AutoJumpIdempotent(t *testing.T) {
	m, reg := newMachine(t)

	m.Observe(running(0))
	require.True(t, m.Observe(done(finished, 0, 1)).Jumped)

	// Something moves the selection without claiming it; repeated refreshes
	// with the same finish time must not jump back.
	reg.AutoSelect("T1", "E1", 0)
	for range 3 {
		d := m.Observe(done(finished, 0, 1))
		assert.False(t, d.Jumped)
		assert.Equal(t, 0, d.State.ActiveSet)
	}
}

func TestMachine_UserPickDurable(t *testing.T) {
	m, _ := newMachine(t)

	m.Observe(running(0, 1))
	m.Select(0)
	m.Observe(running(0, 1))
	d := m.Observe(done(finished, 0, 1, 2))

	assert.False(t, d.Jumped)
	assert.Equal(t, State{ActiveSet: 0, UserPicked: true}, m.State())

	later := finished.Add(time.Second)
	m.Observe(done(later, 0, 1, 2))
	assert.Equal(t, State{ActiveSet: 0, UserPicked: true}, m.State())
}

func TestMachine_SelectOverviewClaims(t *testing.T) {
	m, _ := newMachine(t)

	m.Observe(running(0))
	m.SelectOverview()
	d := m.Observe(done(finished, 0, 1))

	assert.False(t, d.Jumped)
	assert.True(t, d.State.IsOverview())
}

func TestMachine_NewExecutionResets(t *testing.T) {
	m, reg := newMachine(t)

	m.Observe(running(0))
	m.Select(0)
	m.Observe(done(finished, 0))

	assert.False(t, m.SetExecution("E1"), "same execution is not a reset")
	require.True(t, m.SetExecution("E2"))
	assert.Equal(t, State{ActiveSet: Overview}, m.State())
	assert.Equal(t, "E2", m.ExecutionID())

	m.Observe(running())
	d := m.Observe(done(finished.Add(time.Minute), 0, 1))
	assert.True(t, d.Jumped)
	assert.Equal(t, 1, d.State.ActiveSet)

	// Selection of the previous execution is retained.
	assert.Equal(t, State{ActiveSet: 0, UserPicked: true}, reg.Get("T1", "E1"))
}

func TestMachine_RestartClearsClaim(t *testing.T) {
	m, _ := newMachine(t)

	m.Observe(running(0))
	m.Observe(done(finished, 0))
	m.Select(0)

	d := m.Observe(running(0))
	assert.True(t, d.Reclaimed, "a finished run starting over is unclaimed")
	assert.False(t, d.State.UserPicked)

	m.Select(0)
	d = m.Observe(running(0))
	assert.False(t, d.Reclaimed, "only the restart clears the claim")
	assert.True(t, d.State.UserPicked)
}

func TestMachine_PickBeforeFirstPollIsKept(t *testing.T) {
	m, reg := newMachine(t)
	reg.Select("T1", "E1", 0)

	d := m.Observe(running(0))
	assert.False(t, d.Reclaimed)
	assert.True(t, d.State.UserPicked)
	assert.Equal(t, 0, d.State.ActiveSet)
}

func TestMachine_UnreadableSessionKeepsPick(t *testing.T) {
	m, _ := newMachine(t)

	m.Observe(Observation{Indices: []int{0}})
	m.Select(0)

	d := m.Observe(running(0, 1))
	assert.False(t, d.Reclaimed)
	assert.True(t, d.State.UserPicked)

	d = m.Observe(done(finished, 0, 1, 2))
	assert.False(t, d.Jumped)
	assert.Equal(t, 0, d.State.ActiveSet)
	assert.True(t, d.State.UserPicked)
}

func TestMachine_UnreadableSessionBetweenPolls(t *testing.T) {
	m, _ := newMachine(t)

	m.Observe(running(0))
	d := m.Observe(Observation{Indices: []int{0, 1}})
	assert.False(t, d.Jumped)
	assert.False(t, d.Reclaimed)

	d = m.Observe(done(finished, 0, 1))
	assert.True(t, d.Jumped)
	assert.Equal(t, 1, d.State.ActiveSet)

	d = m.Observe(Observation{Indices: []int{0, 1}})
	assert.False(t, d.Jumped, "a missing session does not look like a new finish")
	d = m.Observe(done(finished, 0, 1))
	assert.False(t, d.Jumped)
}

func TestMachine_MissingActiveForcesOverview(t *testing.T) {
	m, _ := newMachine(t)

	m.Observe(running(0, 1))
	m.Select(1)
	d := m.Observe(running(0))

	assert.True(t, d.ForcedOverview)
	assert.True(t, d.State.IsOverview())
	assert.True(t, d.State.UserPicked)
}

func TestMachine_TerminalWithoutFinishTime(t *testing.T) {
	m, _ := newMachine(t)

	m.Observe(running(0))
	d := m.Observe(Observation{Status: core.ExecutionStatusError, Indices: []int{0}})
	assert.True(t, d.Jumped)
	assert.Equal(t, 0, d.State.ActiveSet)

	d = m.Observe(Observation{Status: core.ExecutionStatusError, Indices: []int{0}})
	assert.False(t, d.Jumped)
}

func TestMachine_AlreadyFinishedExecution(t *testing.T) {
	m, _ := newMachine(t)

	d := m.Observe(done(finished, 0, 1, 2))
	assert.True(t, d.Jumped)
	assert.Equal(t, 2, d.State.ActiveSet)
}

func TestMachine_NoExecution(t *testing.T) {
	m := NewMachine(NewRegistry(), "T1", nil)

	assert.True(t, m.Observe(done(finished, 0)).State.IsOverview())
	assert.True(t, m.Select(3).IsOverview())
}
