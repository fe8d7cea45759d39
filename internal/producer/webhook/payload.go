package webhook

import (
	"strings"
	"time"

	"shelfwatch/internal/media"
)

// payload is the flattened body sent by the Jellyfin webhook plugin's
// generic destination. Field names follow the plugin's template
// variables, not Go conventions.
type payload struct {
	NotificationType string `json:"NotificationType"`

	ServerName string `json:"ServerName,omitempty"`
	ServerID   string `json:"ServerId,omitempty"`

	ItemID   string `json:"ItemId"`
	Name     string `json:"Name,omitempty"`
	ItemType string `json:"ItemType"`
	ItemPath string `json:"ItemPath,omitempty"`
	Year     int    `json:"Year,omitempty"`
	Overview string `json:"Overview,omitempty"`

	ParentID  string `json:"ParentId,omitempty"`
	LibraryID string `json:"LibraryId,omitempty"`

	SeriesID      string `json:"SeriesId,omitempty"`
	SeriesName    string `json:"SeriesName,omitempty"`
	SeasonNumber  *int   `json:"SeasonNumber,omitempty"`
	EpisodeNumber *int   `json:"EpisodeNumber,omitempty"`

	ProviderTmdb string `json:"Provider_tmdb,omitempty"`
	ProviderTvdb string `json:"Provider_tvdb,omitempty"`
	ProviderImdb string `json:"Provider_imdb,omitempty"`

	Timestamp string `json:"Timestamp,omitempty"`
}

const notificationItemAdded = "ItemAdded"

func (p payload) itemAdded() bool {
	return strings.EqualFold(p.NotificationType, notificationItemAdded)
}

func (p payload) toEvent(now time.Time) media.RawEvent {
	ev := media.RawEvent{
		ItemID:      p.ItemID,
		ItemType:    media.ParseItemType(p.ItemType),
		Source:      media.SourceWebhook,
		SeriesID:    p.SeriesID,
		ParentID:    p.ParentID,
		LibraryHint: p.LibraryID,
		Name:        p.Name,
		SeriesName:  p.SeriesName,
		Year:        p.Year,
		Overview:    p.Overview,
		ObservedAt:  now,
	}
	if p.SeasonNumber != nil {
		ev.SeasonNumber = *p.SeasonNumber
	}
	if p.EpisodeNumber != nil {
		ev.EpisodeNumber = *p.EpisodeNumber
	}
	if ts, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
		ev.ObservedAt = ts
	}

	providers := map[string]string{}
	if p.ProviderTmdb != "" {
		providers["tmdb"] = p.ProviderTmdb
	}
	if p.ProviderTvdb != "" {
		providers["tvdb"] = p.ProviderTvdb
	}
	if p.ProviderImdb != "" {
		providers["imdb"] = p.ProviderImdb
	}
	if len(providers) > 0 {
		ev.ProviderIDs = providers
	}
	return ev
}
