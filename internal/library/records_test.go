package library

import (
	"testing"

	"shelfwatch/internal/jellyfin"
	"shelfwatch/internal/media"
)

func TestContentFilterCompatible(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		filter ContentFilter
		typ    media.ItemType
		want   bool
	}{
		{"movies accepts movie", FilterMovies, media.TypeMovie, true},
		{"movies rejects series", FilterMovies, media.TypeSeries, false},
		{"movies rejects season", FilterMovies, media.TypeSeason, false},
		{"movies rejects episode", FilterMovies, media.TypeEpisode, false},
		{"shows accepts episode", FilterShows, media.TypeEpisode, true},
		{"shows accepts series", FilterShows, media.TypeSeries, true},
		{"shows rejects movie", FilterShows, media.TypeMovie, false},
		{"mixed accepts movie", FilterMixed, media.TypeMovie, true},
		{"mixed accepts episode", FilterMixed, media.TypeEpisode, true},
		{"mixed accepts unknown", FilterMixed, media.ItemType("MusicAlbum"), true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Compatible(tt.typ); got != tt.want {
				t.Fatalf("Compatible(%s) = %v, want %v", tt.typ, got, tt.want)
			}
		})
	}
}

func TestRecordMatches(t *testing.T) {
	t.Parallel()
	rec := Record{
		VirtualID:    "vf-1",
		CollectionID: "col-1",
		PathPrefixes: []string{"/data/movies"},
	}

	if !rec.Matches("col-1", "") {
		t.Fatal("collection id did not match")
	}
	if !rec.Matches("vf-1", "") {
		t.Fatal("virtual id did not match")
	}
	if !rec.Matches("other", `\DATA\Movies\Heat (1995)`) {
		t.Fatal("windows-style path did not match prefix")
	}
	if rec.Matches("other", "/data/tv/show") {
		t.Fatal("unrelated path matched")
	}
	if rec.Matches("", "") {
		t.Fatal("empty node matched")
	}
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()
	if got := NormalizePath(`C:\Media\TV`); got != "c:/media/tv" {
		t.Fatalf("NormalizePath = %q", got)
	}
	if got := NormalizePath("  "); got != "" {
		t.Fatalf("blank path = %q, want empty", got)
	}
}

func TestFromVirtualFolders(t *testing.T) {
	t.Parallel()
	recs := FromVirtualFolders([]jellyfin.VirtualFolder{
		{Name: "Movies", ItemID: "vf-1", CollectionType: "movies", Locations: []string{`\data\Movies`}},
		{Name: "TV", ItemID: "vf-2", CollectionType: "tvshows"},
		{Name: "broken", ItemID: " "}, // no id: unmatchable, skipped
	})
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].ContentType != FilterMovies || recs[1].ContentType != FilterShows {
		t.Fatalf("content filters wrong: %+v", recs)
	}
	if len(recs[0].PathPrefixes) != 1 || recs[0].PathPrefixes[0] != "/data/movies" {
		t.Fatalf("locations not normalized: %+v", recs[0].PathPrefixes)
	}
}
