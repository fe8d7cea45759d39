package engine

import (
	"sync"
	"time"

	"shelfwatch/internal/media"
)

type sentRecord struct {
	level     media.ContentLevel
	expiresAt time.Time
}

// SentRecords remembers, per grouping key, the highest content level
// already notified. While a record is unexpired, events at or below its
// level are dropped before opening a new debounce window, so a series
// notification silences the season/episode stragglers that follow it.
type SentRecords struct {
	mu        sync.Mutex
	m         map[string]sentRecord
	retention time.Duration
	now       func() time.Time
}

func NewSentRecords(retention time.Duration) *SentRecords {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &SentRecords{
		m:         map[string]sentRecord{},
		retention: retention,
		now:       time.Now,
	}
}

// Suppressed reports whether an event of the given level for this key is
// covered by an unexpired record of equal or higher level.
func (s *SentRecords) Suppressed(key string, level media.ContentLevel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[key]
	if !ok {
		return false
	}
	if s.now().After(rec.expiresAt) {
		delete(s.m, key)
		return false
	}
	return level <= rec.level
}

// Record notes an emitted notification. A higher level supersedes an
// existing record; a lower one never downgrades it.
func (s *SentRecords) Record(key string, level media.ContentLevel) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.m[key]; ok && now.Before(rec.expiresAt) && rec.level > level {
		return
	}
	s.m[key] = sentRecord{level: level, expiresAt: now.Add(s.retention)}
}

// Sweep removes expired records and returns how many were dropped.
func (s *SentRecords) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for key, rec := range s.m {
		if now.After(rec.expiresAt) {
			delete(s.m, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of active records.
func (s *SentRecords) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
