// Package library resolves which configured library owns a catalog item
// and keeps a cached snapshot of the server's library records.
package library

import (
	"strings"

	"shelfwatch/internal/jellyfin"
	"shelfwatch/internal/media"
)

// ContentFilter restricts which item types a library can own. It keeps a
// Movies library and a TV Shows library apart even when their folders
// share a filesystem parent.
type ContentFilter string

const (
	FilterMixed  ContentFilter = ""
	FilterMovies ContentFilter = "movies"
	FilterShows  ContentFilter = "tvshows"
)

// Compatible reports whether an event of the given type may belong to a
// library with this filter.
func (f ContentFilter) Compatible(t media.ItemType) bool {
	switch f {
	case FilterMovies:
		return t != media.TypeSeries && t != media.TypeSeason && t != media.TypeEpisode
	case FilterShows:
		return t == media.TypeSeries || t == media.TypeSeason || t == media.TypeEpisode
	default:
		return true
	}
}

// Record is one configured library.
//
// VirtualID is the stable identifier used in routing config. CollectionID
// is the id actually attached to content items through their ancestor
// collection folders; the two may differ, so matching checks both.
type Record struct {
	VirtualID    string
	CollectionID string
	Name         string
	ContentType  ContentFilter
	PathPrefixes []string
}

// Matches reports whether the given node id or filesystem path places a
// node inside this library.
func (r Record) Matches(nodeID, nodePath string) bool {
	if nodeID != "" && (nodeID == r.CollectionID || nodeID == r.VirtualID) {
		return true
	}
	if p := NormalizePath(nodePath); p != "" {
		for _, prefix := range r.PathPrefixes {
			if prefix != "" && strings.HasPrefix(p, prefix) {
				return true
			}
		}
	}
	return false
}

// NormalizePath lower-cases a filesystem path and flips backslashes to
// forward slashes so Windows and POSIX roots compare equal.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(p, "\\", "/"))
}

// FromVirtualFolders maps the server's virtual folder list to records.
// Folders without an item id are skipped; they cannot be matched.
func FromVirtualFolders(folders []jellyfin.VirtualFolder) []Record {
	out := make([]Record, 0, len(folders))
	for _, f := range folders {
		if strings.TrimSpace(f.ItemID) == "" {
			continue
		}
		rec := Record{
			VirtualID:    f.ItemID,
			CollectionID: f.ItemID,
			Name:         f.Name,
			ContentType:  parseFilter(f.CollectionType),
		}
		for _, loc := range f.Locations {
			if p := NormalizePath(loc); p != "" {
				rec.PathPrefixes = append(rec.PathPrefixes, p)
			}
		}
		out = append(out, rec)
	}
	return out
}

func parseFilter(collectionType string) ContentFilter {
	switch strings.ToLower(strings.TrimSpace(collectionType)) {
	case "movies":
		return FilterMovies
	case "tvshows":
		return FilterShows
	default:
		return FilterMixed
	}
}
