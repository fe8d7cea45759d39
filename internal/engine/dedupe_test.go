package engine

import (
	"testing"
	"time"

	"shelfwatch/internal/media"
)

func TestDedupCacheFirstSeenWins(t *testing.T) {
	t.Parallel()
	clock := time.Now()
	c := NewDedupCache(24 * time.Hour)
	c.now = func() time.Time { return clock }

	if !c.ShouldProcess("item-1") {
		t.Fatal("first observation rejected")
	}
	if c.ShouldProcess("item-1") {
		t.Fatal("duplicate accepted inside retention")
	}
	if !c.ShouldProcess("item-2") {
		t.Fatal("unrelated id rejected")
	}

	clock = clock.Add(25 * time.Hour)
	if !c.ShouldProcess("item-1") {
		t.Fatal("expired id still rejected")
	}
}

func TestDedupCacheEmptyID(t *testing.T) {
	t.Parallel()
	c := NewDedupCache(time.Hour)
	if c.ShouldProcess("") {
		t.Fatal("empty id accepted")
	}
}

func TestDedupCacheSweep(t *testing.T) {
	t.Parallel()
	clock := time.Now()
	c := NewDedupCache(time.Hour)
	c.now = func() time.Time { return clock }

	c.ShouldProcess("a")
	c.ShouldProcess("b")
	clock = clock.Add(30 * time.Minute)
	c.ShouldProcess("c")

	clock = clock.Add(45 * time.Minute) // a, b expired; c not
	if dropped := c.Sweep(); dropped != 2 {
		t.Fatalf("Sweep dropped %d, want 2", dropped)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestSentRecordsLevelOrdering(t *testing.T) {
	t.Parallel()
	clock := time.Now()
	s := NewSentRecords(24 * time.Hour)
	s.now = func() time.Time { return clock }

	s.Record("key", media.LevelSeason)

	if !s.Suppressed("key", media.LevelEpisode) {
		t.Fatal("episode not suppressed under season record")
	}
	if !s.Suppressed("key", media.LevelSeason) {
		t.Fatal("equal level not suppressed")
	}
	if s.Suppressed("key", media.LevelSeries) {
		t.Fatal("higher level suppressed")
	}

	// Lower level never downgrades an existing record.
	s.Record("key", media.LevelEpisode)
	if !s.Suppressed("key", media.LevelSeason) {
		t.Fatal("record downgraded by lower-level emit")
	}

	// Higher level supersedes.
	s.Record("key", media.LevelSeries)
	if !s.Suppressed("key", media.LevelSeries) {
		t.Fatal("series record not effective")
	}
}

func TestSentRecordsExpiry(t *testing.T) {
	t.Parallel()
	clock := time.Now()
	s := NewSentRecords(time.Hour)
	s.now = func() time.Time { return clock }

	s.Record("key", media.LevelSeries)
	clock = clock.Add(2 * time.Hour)
	if s.Suppressed("key", media.LevelEpisode) {
		t.Fatal("expired record still suppressing")
	}
	if s.Len() != 0 {
		t.Fatalf("expired record not removed lazily, Len = %d", s.Len())
	}
}
