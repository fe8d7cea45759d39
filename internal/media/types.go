// Package media holds the normalized domain types shared by producers and
// the coalescing engine.
//
// Producers (webhook, poller, socket) translate server-specific payloads
// into RawEvent before handing them to the engine. A RawEvent is immutable
// after construction.
package media

import (
	"strings"
	"time"
)

// ItemType is the catalog item kind as reported by the media server.
type ItemType string

const (
	TypeMovie   ItemType = "Movie"
	TypeSeries  ItemType = "Series"
	TypeSeason  ItemType = "Season"
	TypeEpisode ItemType = "Episode"
)

// ParseItemType maps a server item-type string to a known ItemType,
// normalizing case. Unknown kinds are returned as-is; they coalesce at
// level 0.
func ParseItemType(s string) ItemType {
	for _, t := range []ItemType{TypeMovie, TypeSeries, TypeSeason, TypeEpisode} {
		if strings.EqualFold(s, string(t)) {
			return t
		}
	}
	return ItemType(s)
}

// ContentLevel orders item types for coalescing priority. A higher level
// for the same grouping key wins the debounce window and suppresses
// lower-level notifications for the retention period.
type ContentLevel int

const (
	LevelOther   ContentLevel = 0
	LevelEpisode ContentLevel = 1
	LevelSeason  ContentLevel = 2
	LevelSeries  ContentLevel = 3
)

// Level returns the coalescing priority of an item type.
func (t ItemType) Level() ContentLevel {
	switch t {
	case TypeSeries:
		return LevelSeries
	case TypeSeason:
		return LevelSeason
	case TypeEpisode:
		return LevelEpisode
	default:
		return LevelOther
	}
}

// IsVideo reports whether the type is one the engine notifies about.
func (t ItemType) IsVideo() bool {
	switch t {
	case TypeMovie, TypeSeries, TypeSeason, TypeEpisode:
		return true
	default:
		return false
	}
}

// Source identifies which producer observed an event. The dedup cache
// applies only to sources that may re-observe items (poller, socket).
type Source string

const (
	SourceWebhook Source = "webhook"
	SourcePoller  Source = "poller"
	SourceSocket  Source = "socket"
)

// Deduplicated reports whether events from this source must pass the
// dedup cache before entering the coordinator. Webhook delivery is
// push-once upstream and is deduped at the sent-record level instead.
func (s Source) Deduplicated() bool {
	return s == SourcePoller || s == SourceSocket
}

// RawEvent is one normalized "item added" observation.
type RawEvent struct {
	ItemID   string
	ItemType ItemType
	Source   Source

	// SeriesID groups season/episode events under their series. Empty for
	// movies and other ungrouped content.
	SeriesID string

	// ParentID is the immediate container, when the producer knows it.
	ParentID string

	// LibraryHint is an explicit library/collection id attached by the
	// producer, checked before any ancestor walk.
	LibraryHint string

	Name          string
	SeriesName    string
	Year          int
	Overview      string
	SeasonNumber  int
	EpisodeNumber int
	ProviderIDs   map[string]string

	ObservedAt time.Time
}

// GroupKey returns the content-unit key used for coalescing: the series
// id when present, otherwise the item itself.
func (e RawEvent) GroupKey() string {
	if e.SeriesID != "" {
		return e.SeriesID
	}
	return e.ItemID
}

// Grouped reports whether the event belongs to a multi-item content unit
// and therefore debounces in a window. Ungrouped events are singletons.
// A Series item is grouped even without a SeriesID: servers leave the
// field empty on the series itself, and the item id is the id its
// episodes group under.
func (e RawEvent) Grouped() bool {
	return e.SeriesID != "" || e.ItemType == TypeSeries
}

// Level is the coalescing priority of this event.
func (e RawEvent) Level() ContentLevel { return e.ItemType.Level() }

// Valid reports whether the event carries the identifiers required to
// enter the engine at all.
func (e RawEvent) Valid() bool {
	return e.ItemID != "" && e.ItemType != ""
}
