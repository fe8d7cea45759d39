package engine

import (
	"testing"
	"time"

	"shelfwatch/internal/media"
	"shelfwatch/internal/transport"
	logx "shelfwatch/pkg/logx"
)

type capture struct {
	fired []Coalesced
}

func (c *capture) emit(co Coalesced) { c.fired = append(c.fired, co) }

func newTestCoordinator(window time.Duration, clock *time.Time) (*Coordinator, *capture, *SentRecords) {
	sink := &capture{}
	sent := NewSentRecords(24 * time.Hour)
	sent.now = func() time.Time { return *clock }
	c := NewCoordinator(window, sent, sink.emit, nil, logx.Nop())
	c.now = func() time.Time { return *clock }
	return c, sink, sent
}

func episode(series, item string, season, ep int) media.RawEvent {
	return media.RawEvent{
		ItemID:        item,
		ItemType:      media.TypeEpisode,
		Source:        media.SourceWebhook,
		SeriesID:      series,
		SeriesName:    "Show",
		Name:          "Ep",
		SeasonNumber:  season,
		EpisodeNumber: ep,
	}
}

func TestCoordinatorCoalescesEpisodeBurst(t *testing.T) {
	t.Parallel()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, sink, _ := newTestCoordinator(60*time.Second, &clock)

	target := transport.ChatTarget{ChatID: 42}
	c.Offer(episode("series-1", "ep-1", 1, 1), "lib-tv", target)
	clock = clock.Add(5 * time.Second)
	c.Offer(episode("series-1", "ep-2", 1, 2), "lib-tv", target)

	if got := c.Pending(); got != 1 {
		t.Fatalf("Pending = %d, want 1", got)
	}
	if len(sink.fired) != 0 {
		t.Fatalf("fired early: %+v", sink.fired)
	}

	clock = clock.Add(56 * time.Second) // past the first event's deadline
	c.fireDue(clock)

	if len(sink.fired) != 1 {
		t.Fatalf("fired = %d, want 1", len(sink.fired))
	}
	co := sink.fired[0]
	if co.UnitCount != 2 {
		t.Fatalf("UnitCount = %d, want 2", co.UnitCount)
	}
	if co.Event.ItemID != "ep-2" {
		t.Fatalf("representative = %s, want ep-2 (equal level replaces)", co.Event.ItemID)
	}
	if co.Target != target || co.LibraryID != "lib-tv" {
		t.Fatalf("routing lost: %+v", co)
	}
	if c.Pending() != 0 {
		t.Fatalf("entry not cleared")
	}
}

func TestCoordinatorWindowNotExtended(t *testing.T) {
	t.Parallel()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, sink, _ := newTestCoordinator(60*time.Second, &clock)

	c.Offer(episode("series-1", "ep-1", 1, 1), "", transport.ChatTarget{ChatID: 1})
	// A steady stream of later events must not push the deadline out.
	for i := 2; i <= 20; i++ {
		clock = clock.Add(10 * time.Second)
		c.Offer(episode("series-1", "ep-n", 1, i), "", transport.ChatTarget{ChatID: 1})
		c.fireDue(clock)
	}
	if len(sink.fired) == 0 {
		t.Fatal("window never fired despite sustained events")
	}
	first := sink.fired[0]
	if first.UnitCount < 6 || first.UnitCount > 7 {
		// 60s window at one event per 10s: the opener plus 5-6 merges.
		t.Fatalf("UnitCount = %d, want 6 or 7", first.UnitCount)
	}
}

func TestCoordinatorHigherLevelReplacesRepresentative(t *testing.T) {
	t.Parallel()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, sink, _ := newTestCoordinator(60*time.Second, &clock)

	c.Offer(episode("series-1", "ep-1", 1, 1), "lib-a", transport.ChatTarget{ChatID: 1})
	season := media.RawEvent{
		ItemID: "season-1", ItemType: media.TypeSeason, SeriesID: "series-1",
		SeriesName: "Show", SeasonNumber: 1,
	}
	c.Offer(season, "lib-b", transport.ChatTarget{ChatID: 2})
	// A later, lower-level event must not demote the representative.
	c.Offer(episode("series-1", "ep-2", 1, 2), "lib-a", transport.ChatTarget{ChatID: 1})

	clock = clock.Add(61 * time.Second)
	c.fireDue(clock)

	if len(sink.fired) != 1 {
		t.Fatalf("fired = %d, want 1", len(sink.fired))
	}
	co := sink.fired[0]
	if co.Event.ItemType != media.TypeSeason {
		t.Fatalf("representative type = %s, want Season", co.Event.ItemType)
	}
	if co.Target.ChatID != 2 {
		t.Fatalf("routing should follow the representative, got chat %d", co.Target.ChatID)
	}
	if co.UnitCount != 2 {
		t.Fatalf("UnitCount = %d, want 2 (episodes only)", co.UnitCount)
	}
}

func TestCoordinatorSingletonFiresImmediately(t *testing.T) {
	t.Parallel()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, sink, _ := newTestCoordinator(60*time.Second, &clock)

	movie := media.RawEvent{ItemID: "movie-1", ItemType: media.TypeMovie, Name: "Film"}
	c.Offer(movie, "lib-movies", transport.ChatTarget{ChatID: 7})

	if len(sink.fired) != 1 {
		t.Fatalf("movie not fired immediately, fired = %d", len(sink.fired))
	}
	if c.Pending() != 0 {
		t.Fatalf("singleton left an open window")
	}

	// A duplicate singleton within the retention period is suppressed.
	c.Offer(movie, "lib-movies", transport.ChatTarget{ChatID: 7})
	if len(sink.fired) != 1 {
		t.Fatalf("duplicate movie fired, total = %d", len(sink.fired))
	}
}

func TestCoordinatorSentRecordSuppressesLowerLevels(t *testing.T) {
	t.Parallel()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, sink, _ := newTestCoordinator(60*time.Second, &clock)

	series := media.RawEvent{ItemID: "series-1", ItemType: media.TypeSeries, Name: "Show"}
	c.Offer(series, "lib-tv", transport.ChatTarget{ChatID: 1})
	clock = clock.Add(61 * time.Second)
	c.fireDue(clock)
	if len(sink.fired) != 1 {
		t.Fatalf("series window did not fire")
	}

	// Stragglers at or below Series level are dropped without a window.
	c.Offer(episode("series-1", "ep-late", 1, 1), "lib-tv", transport.ChatTarget{ChatID: 1})
	if c.Pending() != 0 {
		t.Fatalf("suppressed event opened a window")
	}
	if len(sink.fired) != 1 {
		t.Fatalf("suppressed event fired")
	}

	// After retention expires the same key notifies again.
	clock = clock.Add(25 * time.Hour)
	c.Offer(episode("series-1", "ep-next-day", 2, 1), "lib-tv", transport.ChatTarget{ChatID: 1})
	if c.Pending() != 1 {
		t.Fatalf("expired record still suppressing")
	}
}

func TestCoordinatorSeriesEventJoinsEpisodeWindow(t *testing.T) {
	t.Parallel()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, sink, _ := newTestCoordinator(60*time.Second, &clock)

	target := transport.ChatTarget{ChatID: 3}
	c.Offer(episode("series-1", "ep-1", 1, 1), "lib-tv", target)
	clock = clock.Add(2 * time.Second)
	c.Offer(episode("series-1", "ep-2", 1, 2), "lib-tv", target)

	// The series item itself arrives with no SeriesID, as servers emit it.
	// It must merge into the open window, not fire as a singleton.
	clock = clock.Add(2 * time.Second)
	series := media.RawEvent{ItemID: "series-1", ItemType: media.TypeSeries, Name: "Show"}
	c.Offer(series, "lib-tv", target)

	if len(sink.fired) != 0 {
		t.Fatalf("fired before the window deadline: %d fired, first type=%s",
			len(sink.fired), sink.fired[0].Event.ItemType)
	}
	if c.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", c.Pending())
	}

	clock = clock.Add(61 * time.Second)
	c.fireDue(clock)

	if len(sink.fired) != 1 {
		t.Fatalf("want exactly 1 coalesced notification, got %d", len(sink.fired))
	}
	co := sink.fired[0]
	if co.Event.ItemType != media.TypeSeries {
		t.Fatalf("representative type = %s, want Series", co.Event.ItemType)
	}
	if co.UnitCount != 2 {
		t.Fatalf("UnitCount = %d, want 2", co.UnitCount)
	}

	// Episode stragglers for the same series stay suppressed.
	c.Offer(episode("series-1", "ep-3", 1, 3), "lib-tv", target)
	if len(sink.fired) != 1 || c.Pending() != 0 {
		t.Fatalf("straggler not suppressed: fired=%d pending=%d", len(sink.fired), c.Pending())
	}
}

func TestCoordinatorSeparateKeysSeparateWindows(t *testing.T) {
	t.Parallel()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, sink, _ := newTestCoordinator(60*time.Second, &clock)

	c.Offer(episode("series-a", "a1", 1, 1), "", transport.ChatTarget{ChatID: 1})
	clock = clock.Add(30 * time.Second)
	c.Offer(episode("series-b", "b1", 1, 1), "", transport.ChatTarget{ChatID: 1})

	if c.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", c.Pending())
	}

	clock = clock.Add(31 * time.Second) // a due, b not
	c.fireDue(clock)
	if len(sink.fired) != 1 || sink.fired[0].Event.GroupKey() != "series-a" {
		t.Fatalf("wrong window fired: %+v", sink.fired)
	}

	clock = clock.Add(30 * time.Second)
	c.fireDue(clock)
	if len(sink.fired) != 2 {
		t.Fatalf("second window did not fire")
	}
}
