package eventlog

import (
	"sync"

	"github.com/elys-network/flywheel/internal/types"
)

// DefaultRetention is the number of events kept when no retention is configured.
const DefaultRetention = 100

// Log is a bounded, append-only record of committed events. When full, the oldest events are dropped.
type Log struct {
	mu        sync.RWMutex
	events    []types.Event // oldest first
	retention int
}

// New creates an empty log keeping at most retention events.
func New(retention int) *Log {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Log{retention: retention}
}

// Retention returns the maximum number of events kept.
func (l *Log) Retention() int { return l.retention }

// Append adds committed events in the order they were committed.
func (l *Log) Append(events ...types.Event) {
	if len(events) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, events...)
	if over := len(l.events) - l.retention; over > 0 {
		l.events = append([]types.Event(nil), l.events[over:]...)
	}
}

// Hydrate replaces the log contents with events listed newest first, as returned by a store.
func (l *Log) Hydrate(newestFirst []types.Event) {
	ordered := make([]types.Event, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		ordered = append(ordered, newestFirst[i])
	}
	if over := len(ordered) - l.retention; over > 0 {
		ordered = ordered[over:]
	}

	l.mu.Lock()
	l.events = ordered
	l.mu.Unlock()
}

// List returns up to limit events, newest first. A limit of 0 or less returns every retained event.
func (l *Log) List(limit int) []types.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]types.Event, 0, n)
	for i := len(l.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.events[i])
	}
	return out
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
