package streaming

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates one display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// Scheduler runs a flush on the next paint frame. The loader never holds
// its lock while calling Schedule.
type Scheduler interface {
	Schedule(fn func())
}

// TimerFrames runs each flush after a fixed interval.
type TimerFrames struct {
	Interval time.Duration
}

// Schedule implements Scheduler.
func (f TimerFrames) Schedule(fn func()) {
	d := f.Interval
	if d <= 0 {
		d = DefaultFrameInterval
	}
	time.AfterFunc(d, fn)
}

// ImmediateFrames flushes synchronously on the scheduling goroutine.
type ImmediateFrames struct{}

// Schedule implements Scheduler.
func (ImmediateFrames) Schedule(fn func()) { fn() }

// ManualFrames queues flushes until Tick runs them.
type ManualFrames struct {
	mu      sync.Mutex
	pending []func()
}

// Schedule implements Scheduler.
func (f *ManualFrames) Schedule(fn func()) {
	f.mu.Lock()
	f.pending = append(f.pending, fn)
	f.mu.Unlock()
}

// Pending returns the number of queued flushes.
func (f *ManualFrames) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Tick runs every queued flush and returns how many ran.
func (f *ManualFrames) Tick() int {
	f.mu.Lock()
	pending := f.pending
	f.pending = nil
	f.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
	return len(pending)
}
