package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"warframe_bot/internal/metrics"
	"warframe_bot/internal/model"
)

// ErrNoData is returned when no usable snapshot is available. Callers must
// treat it as "no data", never as an empty snapshot.
var ErrNoData = errors.New("world state unavailable")

// DefaultTTL is how long a fetched snapshot stays fresh.
const DefaultTTL = 120 * time.Second

// Source produces snapshots. *Fetcher implements it.
type Source interface {
	Fetch(ctx context.Context) (*model.Snapshot, error)
}

// Cache memoizes the last good snapshot for a fixed freshness window.
// All readers share one Cache so the upstream is hit at most once per window.
type Cache struct {
	src Source
	ttl time.Duration
	log *slog.Logger
	now func() time.Time

	mu        sync.Mutex
	snap      *model.Snapshot
	fetchedAt time.Time
}

// NewCache wraps src with a ttl freshness window.
func NewCache(src Source, ttl time.Duration, log *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		src: src,
		ttl: ttl,
		log: log,
		now: time.Now,
	}
}

// Snapshot returns the cached snapshot while it is fresh and fetches a new
// one otherwise. A failed fetch leaves the previous entry and its timestamp
// untouched and returns an error wrapping ErrNoData.
// The returned snapshot is shared and must not be modified.
func (c *Cache) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		metrics.FeedCacheHits.Inc()
		return c.snap, nil
	}
	return c.fetchLocked(ctx)
}

// Refresh fetches a snapshot regardless of freshness.
func (c *Cache) Refresh(ctx context.Context) (*model.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchLocked(ctx)
}

func (c *Cache) fetchLocked(ctx context.Context) (*model.Snapshot, error) {
	snap, err := c.src.Fetch(ctx)
	if err != nil {
		c.log.Error("fetch world state", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNoData, err)
	}
	c.snap = snap
	c.fetchedAt = c.now()
	c.log.Debug("world state refreshed",
		"events", len(snap.Events),
		"invasions", len(snap.Invasions),
		"fissures", len(snap.Fissures),
	)
	return snap, nil
}
