// Package resultcache holds recently loaded result-set slices so a tab can
// show them again without re-reading rows. Entries are evicted least
// recently written first; reads never affect the order.
package resultcache

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/leapstack-labs/workbench/internal/metrics"
	"github.com/leapstack-labs/workbench/internal/notifier"
)

// DefaultMaxEntries is the number of slices kept before eviction.
const DefaultMaxEntries = 8

// Store is a process-wide LRU of result-set slices.
type Store struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
	max     int
	seq     uint64
	now     func() time.Time
	logger  *slog.Logger
	notify  *notifier.Notifier
}

// Option configures a Store.
type Option func(*Store)

// WithMaxEntries sets the eviction threshold. Values below 1 are ignored.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithClock replaces time.Now as the LRU clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[Key]*Entry),
		max:     DefaultMaxEntries,
		now:     time.Now,
		logger:  slog.New(slog.DiscardHandler),
		notify:  notifier.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Touch merges patch into the entry for key, creating it when absent,
// stamps it as most recently written and evicts past the threshold.
// Touching NoKey is a no-op.
func (s *Store) Touch(key Key, patch Patch) Entry {
	if key == NoKey {
		return Entry{}
	}

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &Entry{Key: key}
		s.entries[key] = e
	}
	if patch.Results != nil {
		// Clip capacity so appends by the writer never show through.
		e.Results = patch.Results[:len(patch.Results):len(patch.Results)]
	}
	e.Meta = e.Meta.Merge(patch.Meta)
	if patch.ExecutionStatus != nil {
		e.ExecutionStatus = *patch.ExecutionStatus
	}
	if patch.FullyLoaded != nil {
		e.FullyLoaded = *patch.FullyLoaded
	}
	if patch.DataVersion != nil {
		e.DataVersion = *patch.DataVersion
	}
	s.seq++
	e.seq = s.seq
	e.LastUpdated = s.now()
	out := *e
	s.evictLocked(s.max)
	s.mu.Unlock()

	s.notify.Broadcast()
	return out
}

// Get returns a copy of the entry for key.
func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Evict removes the least recently written entries until at most max
// remain and returns how many were removed.
func (s *Store) Evict(max int) int {
	s.mu.Lock()
	n := s.evictLocked(max)
	s.mu.Unlock()
	if n > 0 {
		s.notify.Broadcast()
	}
	return n
}

func (s *Store) evictLocked(max int) int {
	defer metrics.CacheEntries.Set(float64(len(s.entries)))

	excess := len(s.entries) - max
	if excess <= 0 {
		return 0
	}
	for _, e := range s.sortedLocked()[:excess] {
		delete(s.entries, e.Key)
		s.logger.Debug("evicted cached result",
			slog.String("key", string(e.Key)),
			slog.Time("last_updated", e.LastUpdated))
	}
	metrics.CacheEvictions.Add(float64(excess))
	return excess
}

// sortedLocked returns the entries oldest first.
func (s *Store) sortedLocked() []*Entry {
	all := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	slices.SortFunc(all, func(a, b *Entry) int {
		switch {
		case a.older(b):
			return -1
		case b.older(a):
			return 1
		default:
			return 0
		}
	})
	return all
}

// Keys returns the cached keys, least recently written first.
func (s *Store) Keys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sorted := s.sortedLocked()
	keys := make([]Key, len(sorted))
	for i, e := range sorted {
		keys[i] = e.Key
	}
	return keys
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	clear(s.entries)
	metrics.CacheEntries.Set(0)
	s.mu.Unlock()
	s.notify.Broadcast()
}

// Subscribe returns a channel pinged after every write.
func (s *Store) Subscribe() chan struct{} {
	return s.notify.Subscribe()
}

// Unsubscribe releases a channel obtained from Subscribe.
func (s *Store) Unsubscribe(ch chan struct{}) {
	s.notify.Unsubscribe(ch)
}
