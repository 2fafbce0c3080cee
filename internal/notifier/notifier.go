// Package notifier carries change pings between the console's components.
//
// A ping carries no payload. Receivers re-read whatever state they watch,
// so a burst of updates collapses into one pending ping per subscriber.
package notifier

import (
	"context"
	"sync"
)

// Source is anything that hands out ping subscriptions.
type Source interface {
	Subscribe() chan struct{}
	Unsubscribe(chan struct{})
}

// Notifier fans pings out to its subscribers.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan struct{}]struct{}
}

// New creates a Notifier with no subscribers.
func New() *Notifier {
	return &Notifier{listeners: make(map[chan struct{}]struct{})}
}

// Subscribe returns a channel with room for one pending ping. Call
// Unsubscribe when done.
func (n *Notifier) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch. Repeated calls are no-ops.
func (n *Notifier) Unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	_, ok := n.listeners[ch]
	delete(n.listeners, ch)
	n.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Broadcast pings every subscriber without blocking. A subscriber that
// still holds an unread ping is skipped.
func (n *Notifier) Broadcast() {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch := range n.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of subscribers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Merge subscribes to every source and forwards their pings, coalesced,
// to one channel. When ctx is done the subscriptions are released and the
// returned channel is closed.
func Merge(ctx context.Context, sources ...Source) <-chan struct{} {
	out := make(chan struct{}, 1)
	subs := make([]chan struct{}, len(sources))
	for i, src := range sources {
		subs[i] = src.Subscribe()
	}

	var wg sync.WaitGroup
	for _, ch := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-ch:
					if !ok {
						return
					}
					select {
					case out <- struct{}{}:
					default:
					}
				}
			}
		}()
	}

	go func() {
		<-ctx.Done()
		for i, src := range sources {
			src.Unsubscribe(subs[i])
		}
		wg.Wait()
		close(out)
	}()
	return out
}
