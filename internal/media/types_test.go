package media

import "testing"

func TestLevelOrdering(t *testing.T) {
	t.Parallel()
	cases := []struct {
		typ  ItemType
		want ContentLevel
	}{
		{TypeSeries, LevelSeries},
		{TypeSeason, LevelSeason},
		{TypeEpisode, LevelEpisode},
		{TypeMovie, LevelOther},
		{ItemType("MusicAlbum"), LevelOther},
		{ItemType(""), LevelOther},
	}
	for _, tc := range cases {
		if got := tc.typ.Level(); got != tc.want {
			t.Errorf("%q.Level() = %d, want %d", tc.typ, got, tc.want)
		}
	}
	if !(LevelSeries > LevelSeason && LevelSeason > LevelEpisode && LevelEpisode > LevelOther) {
		t.Fatal("level ordering broken")
	}
}

func TestGroupKey(t *testing.T) {
	t.Parallel()
	ep := RawEvent{ItemID: "ep-1", ItemType: TypeEpisode, SeriesID: "show-1"}
	if ep.GroupKey() != "show-1" || !ep.Grouped() {
		t.Fatalf("episode groups under its series, got key %q", ep.GroupKey())
	}
	mv := RawEvent{ItemID: "mv-1", ItemType: TypeMovie}
	if mv.GroupKey() != "mv-1" || mv.Grouped() {
		t.Fatalf("movie is a singleton, got key %q grouped=%v", mv.GroupKey(), mv.Grouped())
	}
	// The series item carries no SeriesID of its own but still groups,
	// under the same key its episodes use.
	sr := RawEvent{ItemID: "show-1", ItemType: TypeSeries}
	if !sr.Grouped() {
		t.Fatal("series event must be grouped even without a SeriesID")
	}
	if sr.GroupKey() != ep.GroupKey() {
		t.Fatalf("series key %q does not match episode key %q", sr.GroupKey(), ep.GroupKey())
	}
}

func TestParseItemType(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want ItemType
	}{
		{"Movie", TypeMovie},
		{"movie", TypeMovie},
		{"EPISODE", TypeEpisode},
		{"series", TypeSeries},
		{"Season", TypeSeason},
		{"MusicAlbum", ItemType("MusicAlbum")},
		{"", ItemType("")},
	}
	for _, tc := range cases {
		if got := ParseItemType(tc.in); got != tc.want {
			t.Errorf("ParseItemType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValid(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		ev   RawEvent
		want bool
	}{
		{"complete", RawEvent{ItemID: "a", ItemType: TypeMovie}, true},
		{"unknown type still valid", RawEvent{ItemID: "a", ItemType: ItemType("Book")}, true},
		{"missing id", RawEvent{ItemType: TypeMovie}, false},
		{"missing type", RawEvent{ItemID: "a"}, false},
		{"zero", RawEvent{}, false},
	}
	for _, tc := range cases {
		if got := tc.ev.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSourceDeduplicated(t *testing.T) {
	t.Parallel()
	if SourceWebhook.Deduplicated() {
		t.Error("webhook events are push-once and bypass the dedup cache")
	}
	if !SourcePoller.Deduplicated() || !SourceSocket.Deduplicated() {
		t.Error("poller and socket re-observe items and must dedup")
	}
}
