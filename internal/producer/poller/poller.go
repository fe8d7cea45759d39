// Package poller periodically asks the media server for recently added
// items. It is the fallback path when the webhook plugin is absent or
// pushes are lost; the dedup cache absorbs the overlap between
// consecutive polls.
package poller

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"shelfwatch/internal/jellyfin"
	"shelfwatch/internal/media"
	logx "shelfwatch/pkg/logx"
)

// Catalog is the slice of the server client the poller needs.
type Catalog interface {
	Latest(ctx context.Context, limit int) ([]jellyfin.Item, error)
}

// Sink receives normalized events; satisfied by engine.Engine.
type Sink interface {
	Ingest(ctx context.Context, ev media.RawEvent)
}

type Config struct {
	// Schedule is a cron expression ("*/5 * * * *") or descriptor
	// ("@every 5m"). Empty disables the poller.
	Schedule string
	// Limit caps how many recent items one poll fetches.
	Limit int
	// Timeout bounds a single poll round trip.
	Timeout time.Duration
}

type Poller struct {
	cfg     Config
	catalog Catalog
	sink    Sink
	log     logx.Logger
	c       *cron.Cron
}

func New(cfg Config, catalog Catalog, sink Sink, log logx.Logger) *Poller {
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{cfg: cfg, catalog: catalog, sink: sink, log: log}
}

// Run schedules polls until ctx ends. Returns immediately with nil when
// no schedule is configured.
func (p *Poller) Run(ctx context.Context) error {
	if p.cfg.Schedule == "" {
		return nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	p.c = cron.New(cron.WithParser(parser))
	if _, err := p.c.AddFunc(p.cfg.Schedule, func() { p.poll(ctx) }); err != nil {
		return err
	}
	p.c.Start()
	p.log.Info("poller started", logx.String("schedule", p.cfg.Schedule), logx.Int("limit", p.cfg.Limit))

	<-ctx.Done()
	stopCtx := p.c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
	}
	return ctx.Err()
}

// Poll runs one fetch cycle immediately. Exposed for startup catch-up
// and tests.
func (p *Poller) Poll(ctx context.Context) { p.poll(ctx) }

func (p *Poller) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	items, err := p.catalog.Latest(pollCtx, p.cfg.Limit)
	if err != nil {
		p.log.Warn("poll failed", logx.Err(err))
		return
	}
	p.log.Debug("poll completed", logx.Int("items", len(items)))

	now := time.Now()
	for _, it := range items {
		ev := eventFromItem(it, now)
		if !ev.Valid() {
			continue
		}
		p.sink.Ingest(pollCtx, ev)
	}
}

func eventFromItem(it jellyfin.Item, now time.Time) media.RawEvent {
	return media.RawEvent{
		ItemID:        it.ID,
		ItemType:      media.ParseItemType(it.Type),
		Source:        media.SourcePoller,
		SeriesID:      it.SeriesID,
		ParentID:      it.ParentID,
		Name:          it.Name,
		SeriesName:    it.SeriesName,
		Year:          it.ProductionYear,
		Overview:      it.Overview,
		SeasonNumber:  it.ParentIndexNumber,
		EpisodeNumber: it.IndexNumber,
		ProviderIDs:   it.ProviderIDs,
		ObservedAt:    now,
	}
}
