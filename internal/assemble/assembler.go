// Package assemble turns a fired debounce window into the final outbound
// notification text, pulling supplementary metadata through the Enricher
// seam. Enrichment failures degrade to omitted fields or "Unknown"; a
// notification is never lost because metadata was unavailable.
package assemble

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"shelfwatch/internal/engine"
	"shelfwatch/internal/jellyfin"
	"shelfwatch/internal/media"
	"shelfwatch/internal/transport"
	logx "shelfwatch/pkg/logx"
)

const overviewMax = 400

// Enrichment is the supplementary metadata attached to a payload.
type Enrichment struct {
	Overview string
	Year     int
	Genres   []string
	Rating   float64
	Runtime  time.Duration
}

// Enricher fetches supplementary fields for an item. Implementations may
// call external catalogs; errors are tolerated.
type Enricher interface {
	Enrich(ctx context.Context, itemID string) (Enrichment, error)
}

// ItemSource is the catalog lookup the default enricher reads from.
type ItemSource interface {
	Item(ctx context.Context, id string) (*jellyfin.Item, error)
}

// CatalogEnricher reads enrichment fields from the media server itself.
type CatalogEnricher struct {
	cat ItemSource
}

func NewCatalogEnricher(cat ItemSource) *CatalogEnricher {
	return &CatalogEnricher{cat: cat}
}

func (e *CatalogEnricher) Enrich(ctx context.Context, itemID string) (Enrichment, error) {
	it, err := e.cat.Item(ctx, itemID)
	if err != nil {
		return Enrichment{}, err
	}
	return Enrichment{
		Overview: it.Overview,
		Year:     it.ProductionYear,
		Genres:   it.Genres,
		Rating:   it.CommunityRating,
		Runtime:  time.Duration(it.RunTimeTicks) * 100 * time.Nanosecond,
	}, nil
}

// Assembler builds notification payloads.
type Assembler struct {
	enricher Enricher
	log      logx.Logger
}

func New(enricher Enricher, log logx.Logger) *Assembler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Assembler{enricher: enricher, log: log}
}

// Assemble produces the outbound notification for a fired window.
func (a *Assembler) Assemble(ctx context.Context, co engine.Coalesced) transport.Notification {
	var enr Enrichment
	if a.enricher != nil {
		e, err := a.enricher.Enrich(ctx, co.Event.ItemID)
		if err != nil {
			a.log.Debug("enrichment failed", logx.String("item", co.Event.ItemID), logx.Err(err))
		} else {
			enr = e
		}
	}

	var b strings.Builder
	b.WriteString(title(co, enr))

	if ov := strings.TrimSpace(firstNonEmpty(enr.Overview, co.Event.Overview)); ov != "" {
		b.WriteString("\n\n")
		b.WriteString(truncate(ov, overviewMax))
	}
	if len(enr.Genres) > 0 {
		b.WriteString("\n\nGenres: ")
		b.WriteString(strings.Join(enr.Genres, ", "))
	}
	if enr.Rating > 0 {
		b.WriteString(fmt.Sprintf("\nRating: %.1f", enr.Rating))
	}
	if co.Event.ItemType == media.TypeMovie && enr.Runtime >= time.Minute {
		b.WriteString(fmt.Sprintf("\nRuntime: %dm", int(enr.Runtime.Minutes())))
	}

	return transport.Notification{
		Channel: "telegram",
		Target:  co.Target,
		Text:    b.String(),
		Options: &transport.SendOptions{DisablePreview: true},
	}
}

func title(co engine.Coalesced, enr Enrichment) string {
	ev := co.Event
	name := strings.TrimSpace(ev.Name)
	if name == "" {
		name = "Unknown"
	}
	series := strings.TrimSpace(ev.SeriesName)
	if series == "" {
		series = name
	}
	year := ev.Year
	if year == 0 {
		year = enr.Year
	}

	switch ev.ItemType {
	case media.TypeMovie:
		return fmt.Sprintf("🎬 New movie: %s%s", name, yearSuffix(year))
	case media.TypeSeries:
		return fmt.Sprintf("📺 New series: %s%s", name, yearSuffix(year))
	case media.TypeSeason:
		if ev.SeasonNumber > 0 {
			return fmt.Sprintf("📺 %s: Season %d added", series, ev.SeasonNumber)
		}
		return fmt.Sprintf("📺 %s: new season added", series)
	case media.TypeEpisode:
		if co.UnitCount > 1 {
			return fmt.Sprintf("📺 %s: %d new episodes", series, co.UnitCount)
		}
		if ev.SeasonNumber > 0 && ev.EpisodeNumber > 0 {
			return fmt.Sprintf("📺 %s S%02dE%02d — %s", series, ev.SeasonNumber, ev.EpisodeNumber, name)
		}
		return fmt.Sprintf("📺 %s: new episode — %s", series, name)
	default:
		return fmt.Sprintf("🆕 Added: %s%s", name, yearSuffix(year))
	}
}

func yearSuffix(year int) string {
	if year <= 0 {
		return ""
	}
	return fmt.Sprintf(" (%d)", year)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, maxN int) string {
	if len(s) <= maxN {
		return s
	}
	// Back off to a rune boundary so multibyte overviews stay valid UTF-8.
	n := maxN
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	cut := s[:n]
	if i := strings.LastIndexByte(cut, ' '); i > maxN/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
