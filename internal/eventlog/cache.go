package eventlog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elys-network/flywheel/internal/logger"
	"github.com/elys-network/flywheel/internal/types"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// DefaultCacheTTL is how long a snapshot is served before the next reader refreshes it.
const DefaultCacheTTL = 5 * time.Second

// DefaultReloadTimeout bounds one reload from a Source.
const DefaultReloadTimeout = 2 * time.Second

// Source returns up to limit committed events, newest first. state.Store satisfies it.
type Source interface {
	RecentEvents(ctx context.Context, limit int) ([]types.Event, error)
}

// Cache serves read-only snapshots of a Log to dashboard readers.
// Readers never block writers: a snapshot is built under the log's read lock
// and published with an atomic pointer swap.
type Cache struct {
	log   *Log
	clock clockwork.Clock
	ttl   time.Duration

	source        Source
	reloadTimeout time.Duration
	logger        zerolog.Logger

	current atomic.Pointer[snapshot]
	refresh sync.Mutex
}

type snapshot struct {
	events  []types.Event // newest first
	takenAt time.Time
}

// NewCache creates a cache over log. A nil clock uses the real clock.
func NewCache(log *Log, clock clockwork.Clock, ttl time.Duration) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{log: log, clock: clock, ttl: ttl, logger: logger.GetForComponent("event_cache")}
}

// WithSource makes every refresh reload the log from src first, so events committed by
// other processes sharing the store show up once the current snapshot expires.
// If a reload fails the snapshot is built from the log as it stands.
func (c *Cache) WithSource(src Source, timeout time.Duration) *Cache {
	if timeout <= 0 {
		timeout = DefaultReloadTimeout
	}
	c.source = src
	c.reloadTimeout = timeout
	return c
}

// List returns up to limit events, newest first, and whether they came from an unexpired snapshot.
// The returned slice must not be modified.
func (c *Cache) List(limit int) ([]types.Event, bool) {
	snap, cached := c.snapshot()
	events := snap.events
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events, cached
}

// Age returns how old the current snapshot is, or zero if none has been taken.
func (c *Cache) Age() time.Duration {
	snap := c.current.Load()
	if snap == nil {
		return 0
	}
	return c.clock.Since(snap.takenAt)
}

// Invalidate drops the current snapshot so the next reader refreshes.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}

func (c *Cache) snapshot() (*snapshot, bool) {
	if snap := c.fresh(); snap != nil {
		return snap, true
	}

	c.refresh.Lock()
	defer c.refresh.Unlock()

	// Another reader may have refreshed while we waited.
	if snap := c.fresh(); snap != nil {
		return snap, true
	}

	c.reload()
	snap := &snapshot{events: c.log.List(0), takenAt: c.clock.Now()}
	c.current.Store(snap)
	return snap, false
}

func (c *Cache) fresh() *snapshot {
	snap := c.current.Load()
	if snap == nil || c.clock.Since(snap.takenAt) >= c.ttl {
		return nil
	}
	return snap
}

func (c *Cache) reload() {
	if c.source == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.reloadTimeout)
	defer cancel()

	events, err := c.source.RecentEvents(ctx, c.log.Retention())
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to reload events, serving the local log")
		return
	}
	c.log.Hydrate(events)
}
