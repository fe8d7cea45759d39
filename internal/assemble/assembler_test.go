package assemble

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"shelfwatch/internal/engine"
	"shelfwatch/internal/media"
	"shelfwatch/internal/transport"
	logx "shelfwatch/pkg/logx"
)

type fakeEnricher struct {
	enr Enrichment
	err error
}

func (f fakeEnricher) Enrich(context.Context, string) (Enrichment, error) { return f.enr, f.err }

func assembleText(t *testing.T, co engine.Coalesced, enr Enricher) string {
	t.Helper()
	a := New(enr, logx.Nop())
	n := a.Assemble(context.Background(), co)
	return n.Text
}

func TestAssembleMovieTitle(t *testing.T) {
	t.Parallel()
	co := engine.Coalesced{Event: media.RawEvent{
		ItemID: "m1", ItemType: media.TypeMovie, Name: "Heat", Year: 1995,
	}}
	text := assembleText(t, co, nil)
	if !strings.HasPrefix(text, "🎬 New movie: Heat (1995)") {
		t.Fatalf("movie title wrong: %q", text)
	}
}

func TestAssembleEpisodeBatch(t *testing.T) {
	t.Parallel()
	co := engine.Coalesced{
		UnitCount: 8,
		Event: media.RawEvent{
			ItemID: "e1", ItemType: media.TypeEpisode, SeriesID: "s1",
			SeriesName: "The Wire", Name: "Ep", SeasonNumber: 1, EpisodeNumber: 8,
		},
	}
	text := assembleText(t, co, nil)
	if !strings.HasPrefix(text, "📺 The Wire: 8 new episodes") {
		t.Fatalf("batch title wrong: %q", text)
	}
}

func TestAssembleSingleEpisode(t *testing.T) {
	t.Parallel()
	co := engine.Coalesced{
		UnitCount: 1,
		Event: media.RawEvent{
			ItemID: "e1", ItemType: media.TypeEpisode, SeriesID: "s1",
			SeriesName: "The Wire", Name: "The Target", SeasonNumber: 1, EpisodeNumber: 1,
		},
	}
	text := assembleText(t, co, nil)
	if !strings.Contains(text, "The Wire S01E01") || !strings.Contains(text, "The Target") {
		t.Fatalf("single episode title wrong: %q", text)
	}
}

func TestAssembleSeasonTitle(t *testing.T) {
	t.Parallel()
	co := engine.Coalesced{Event: media.RawEvent{
		ItemID: "se1", ItemType: media.TypeSeason, SeriesID: "s1",
		SeriesName: "The Wire", Name: "Season 2", SeasonNumber: 2,
	}}
	text := assembleText(t, co, nil)
	if !strings.HasPrefix(text, "📺 The Wire: Season 2 added") {
		t.Fatalf("season title wrong: %q", text)
	}
}

func TestAssembleMissingNamePlaceholder(t *testing.T) {
	t.Parallel()
	co := engine.Coalesced{Event: media.RawEvent{ItemID: "m1", ItemType: media.TypeMovie}}
	text := assembleText(t, co, nil)
	if !strings.Contains(text, "Unknown") {
		t.Fatalf("missing name not handled: %q", text)
	}
}

func TestAssembleEnrichmentFields(t *testing.T) {
	t.Parallel()
	co := engine.Coalesced{
		Event:  media.RawEvent{ItemID: "m1", ItemType: media.TypeMovie, Name: "Heat"},
		Target: transport.ChatTarget{ChatID: 5},
	}
	a := New(fakeEnricher{enr: Enrichment{
		Overview: "A heist thriller.",
		Year:     1995,
		Genres:   []string{"Crime", "Drama"},
		Rating:   8.3,
	}}, logx.Nop())
	n := a.Assemble(context.Background(), co)

	if n.Target.ChatID != 5 {
		t.Fatalf("target not carried: %+v", n.Target)
	}
	for _, want := range []string{"(1995)", "A heist thriller.", "Genres: Crime, Drama", "Rating: 8.3"} {
		if !strings.Contains(n.Text, want) {
			t.Fatalf("missing %q in %q", want, n.Text)
		}
	}
	if n.Options == nil || !n.Options.DisablePreview {
		t.Fatal("preview not disabled")
	}
}

func TestAssembleEnrichmentFailureDegrades(t *testing.T) {
	t.Parallel()
	co := engine.Coalesced{Event: media.RawEvent{
		ItemID: "m1", ItemType: media.TypeMovie, Name: "Heat", Overview: "fallback overview",
	}}
	text := assembleText(t, co, fakeEnricher{err: errors.New("catalog down")})
	if !strings.HasPrefix(text, "🎬 New movie: Heat") {
		t.Fatalf("notification lost on enrichment failure: %q", text)
	}
	if !strings.Contains(text, "fallback overview") {
		t.Fatalf("event overview not used as fallback: %q", text)
	}
}

func TestAssembleOverviewTruncated(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("word ", 200)
	co := engine.Coalesced{Event: media.RawEvent{
		ItemID: "m1", ItemType: media.TypeMovie, Name: "Heat", Overview: long,
	}}
	text := assembleText(t, co, nil)
	if len(text) > len("🎬 New movie: Heat")+overviewMax+16 {
		t.Fatalf("overview not truncated, len = %d", len(text))
	}
	if !strings.Contains(text, "…") {
		t.Fatalf("truncation marker missing")
	}
}

func TestAssembleOverviewTruncationKeepsValidUTF8(t *testing.T) {
	t.Parallel()
	// A spaceless multibyte synopsis must not be cut mid-rune.
	long := strings.Repeat("あ", 200)
	got := truncate(long, overviewMax)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got[:24])
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("truncation marker missing: %q", got)
	}
	if len(got) > overviewMax+len("…") {
		t.Fatalf("overview not truncated, len = %d", len(got))
	}
}
