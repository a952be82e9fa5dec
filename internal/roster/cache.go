package roster

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a shared roster fetch once it no longer belongs to
// the caller that started it.
const DefaultFetchTimeout = 10 * time.Second

// Cache holds the process-wide roster snapshot. It is created once at startup and
// refilled from Source when the snapshot is older than ttl or after Invalidate.
// A ttl of zero disables caching: every Get fetches a fresh roster.
type Cache struct {
	src          Source
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	snap     *Snapshot
	loadedAt time.Time
	gen      uint64

	group singleflight.Group

	// Observe, when set, is called on every Get with whether the cached snapshot
	// was served.
	Observe func(hit bool)
}

// NewCache creates a roster cache over src.
func NewCache(src Source, ttl time.Duration) *Cache {
	return &Cache{src: src, ttl: ttl, fetchTimeout: DefaultFetchTimeout, now: time.Now}
}

// Get returns the current snapshot, fetching it when missing or stale.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	if c.ttl <= 0 {
		snap, err := c.fetch(ctx)
		c.observe(false)
		return snap, err
	}

	c.mu.RLock()
	snap, loadedAt, gen := c.snap, c.loadedAt, c.gen
	c.mu.RUnlock()
	if snap != nil && c.now().Sub(loadedAt) < c.ttl {
		c.observe(true)
		return snap, nil
	}

	// The fetch is shared by every caller that joins it, so it runs detached from
	// the caller that started it. Each caller still gives up on its own ctx.
	ch := c.group.DoChan("roster", func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		fresh, err := c.fetch(fctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// An Invalidate that raced with this fetch wins; the next Get refetches.
		if c.gen == gen {
			c.snap = fresh
			c.loadedAt = c.now()
		}
		c.mu.Unlock()
		return fresh, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		c.observe(false)
		return res.Val.(*Snapshot), nil
	}
}

// Invalidate drops the cached snapshot.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.loadedAt = time.Time{}
	c.gen++
	c.mu.Unlock()
	c.group.Forget("roster")
}

func (c *Cache) fetch(ctx context.Context) (*Snapshot, error) {
	entries, err := c.src.ListRoster(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(entries), nil
}

func (c *Cache) observe(hit bool) {
	if c.Observe != nil {
		c.Observe(hit)
	}
}
