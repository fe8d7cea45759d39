package engine

import (
	"sync"
	"time"
)

// DedupCache absorbs duplicate deliveries from at-least-once producers:
// overlapping poll windows and restarted socket sessions re-observe the
// same items. The webhook path bypasses it (push-once upstream).
type DedupCache struct {
	mu        sync.Mutex
	seen      map[string]time.Time // item id -> first seen
	retention time.Duration
	ops       uint64
	now       func() time.Time
}

const dedupSweepEvery = 256

func NewDedupCache(retention time.Duration) *DedupCache {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &DedupCache{
		seen:      map[string]time.Time{},
		retention: retention,
		now:       time.Now,
	}
}

// ShouldProcess reports whether an item id is being seen for the first
// time within the retention window, recording it as a side effect.
func (c *DedupCache) ShouldProcess(itemID string) bool {
	if itemID == "" {
		return false
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.ops++
	if c.ops%dedupSweepEvery == 0 {
		c.sweepLocked(now)
	}

	if first, ok := c.seen[itemID]; ok && now.Sub(first) < c.retention {
		return false
	}
	c.seen[itemID] = now
	return true
}

// Sweep removes expired records and returns how many were dropped.
func (c *DedupCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(now)
}

func (c *DedupCache) sweepLocked(now time.Time) int {
	dropped := 0
	for id, first := range c.seen {
		if now.Sub(first) >= c.retention {
			delete(c.seen, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked ids.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
