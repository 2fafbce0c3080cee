// Package activeset tracks which result set each (tab, execution) pair is
// showing and decides when to move there automatically.
package activeset

import (
	"sync"

	"github.com/leapstack-labs/workbench/internal/notifier"
)

// Overview is the active index of the multi-statement overview.
const Overview = -1

// State is the selection of one (tab, execution) pair.
type State struct {
	ActiveSet  int
	UserPicked bool
}

// IsOverview reports whether the overview is shown.
func (s State) IsOverview() bool {
	return s.ActiveSet < 0
}

// Key returns the registry key of (tabID, executionID).
func Key(tabID, executionID string) string {
	return tabID + ":" + executionID
}

// Registry is the process-wide map of selections. Writes are
// last-writer-wins per key.
type Registry struct {
	mu     sync.RWMutex
	states map[string]State
	notify *notifier.Notifier
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		states: make(map[string]State),
		notify: notifier.New(),
	}
}

// Get returns the selection, defaulting to an unclaimed overview.
func (r *Registry) Get(tabID, executionID string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.states[Key(tabID, executionID)]; ok {
		return s
	}
	return State{ActiveSet: Overview}
}

// Select records a user navigation to index (Overview included).
func (r *Registry) Select(tabID, executionID string, index int) {
	r.set(tabID, executionID, State{ActiveSet: normalize(index), UserPicked: true})
}

// AutoSelect moves to index without claiming the selection.
func (r *Registry) AutoSelect(tabID, executionID string, index int) {
	r.update(tabID, executionID, func(s State) State {
		s.ActiveSet = normalize(index)
		return s
	})
}

// ForceOverview shows the overview and keeps the claim flag.
func (r *Registry) ForceOverview(tabID, executionID string) {
	r.AutoSelect(tabID, executionID, Overview)
}

// ResetRun starts an execution's selection over: overview, unclaimed.
func (r *Registry) ResetRun(tabID, executionID string) {
	r.set(tabID, executionID, State{ActiveSet: Overview})
}

// ClearUserPicked drops the claim flag and keeps the active index.
func (r *Registry) ClearUserPicked(tabID, executionID string) {
	r.update(tabID, executionID, func(s State) State {
		s.UserPicked = false
		return s
	})
}

// Forget removes the selection of one pair.
func (r *Registry) Forget(tabID, executionID string) {
	r.mu.Lock()
	delete(r.states, Key(tabID, executionID))
	r.mu.Unlock()
	r.notify.Broadcast()
}

// Clear removes every selection.
func (r *Registry) Clear() {
	r.mu.Lock()
	clear(r.states)
	r.mu.Unlock()
	r.notify.Broadcast()
}

// Len returns the number of tracked pairs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

// Subscribe returns a channel pinged after every write.
func (r *Registry) Subscribe() chan struct{} {
	return r.notify.Subscribe()
}

// Unsubscribe releases a channel obtained from Subscribe.
func (r *Registry) Unsubscribe(ch chan struct{}) {
	r.notify.Unsubscribe(ch)
}

func (r *Registry) set(tabID, executionID string, s State) {
	r.mu.Lock()
	r.states[Key(tabID, executionID)] = s
	r.mu.Unlock()
	r.notify.Broadcast()
}

func (r *Registry) update(tabID, executionID string, fn func(State) State) {
	key := Key(tabID, executionID)
	r.mu.Lock()
	s, ok := r.states[key]
	if !ok {
		s = State{ActiveSet: Overview}
	}
	r.states[key] = fn(s)
	r.mu.Unlock()
	r.notify.Broadcast()
}

func normalize(index int) int {
	if index < 0 {
		return Overview
	}
	return index
}
