// Package engine implements the ingest pipeline and the per-key
// debounce coordinator. Producers hand normalized events to Ingest;
// fired windows leave through the EmitFunc.
package engine

import (
	"context"
	"sync"
	"time"

	"shelfwatch/internal/eventbus"
	"shelfwatch/internal/media"
	"shelfwatch/internal/transport"
	logx "shelfwatch/pkg/logx"
)

// Resolver maps an item to its library id. An empty result means the
// item could not be placed and routes to the default target.
type Resolver interface {
	Resolve(ctx context.Context, itemID string, itemType media.ItemType, hint string) string
}

// Router picks the chat target for a library id. ok=false means the
// event is suppressed by routing policy.
type Router interface {
	Route(libraryID string) (transport.ChatTarget, bool)
}

// Toggles enables or disables notifications per item type.
type Toggles struct {
	Movies   bool
	Series   bool
	Seasons  bool
	Episodes bool
}

// DefaultToggles enables every known type.
func DefaultToggles() Toggles {
	return Toggles{Movies: true, Series: true, Seasons: true, Episodes: true}
}

// Allows reports whether events of this type enter the pipeline.
// Unknown types are always allowed; they coalesce at level 0.
func (t Toggles) Allows(typ media.ItemType) bool {
	switch typ {
	case media.TypeMovie:
		return t.Movies
	case media.TypeSeries:
		return t.Series
	case media.TypeSeason:
		return t.Seasons
	case media.TypeEpisode:
		return t.Episodes
	default:
		return true
	}
}

// Config carries the tunable knobs of the pipeline.
type Config struct {
	Window         time.Duration
	DedupRetention time.Duration
	SentRetention  time.Duration
	Toggles        Toggles
}

// Engine validates, deduplicates, resolves and routes raw events, then
// feeds them into the coordinator.
type Engine struct {
	coord    *Coordinator
	dedup    *DedupCache
	resolver Resolver
	router   Router
	bus      eventbus.Bus
	log      logx.Logger

	mu      sync.RWMutex
	toggles Toggles
}

func New(cfg Config, resolver Resolver, router Router, emit EmitFunc, bus eventbus.Bus, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	sent := NewSentRecords(cfg.SentRetention)
	return &Engine{
		coord:    NewCoordinator(cfg.Window, sent, emit, bus, log),
		dedup:    NewDedupCache(cfg.DedupRetention),
		resolver: resolver,
		router:   router,
		bus:      bus,
		log:      log,
		toggles:  cfg.Toggles,
	}
}

// Apply updates hot-reloadable settings. Open windows keep their
// original deadline.
func (e *Engine) Apply(cfg Config) {
	e.coord.SetWindow(cfg.Window)
	e.mu.Lock()
	e.toggles = cfg.Toggles
	e.mu.Unlock()
}

// Run drives the coordinator's timer loop plus a slow dedup sweep until
// ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	sweep := time.NewTicker(time.Hour)
	defer sweep.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sweep.C:
				if n := e.dedup.Sweep(); n > 0 {
					e.log.Debug("dedup cache swept", logx.Int("dropped", n))
				}
			}
		}
	}()
	return e.coord.Run(ctx)
}

// Pending returns the number of open debounce windows.
func (e *Engine) Pending() int { return e.coord.Pending() }

// Ingest runs one event through the pipeline: validate, per-type
// toggle, dedup (at-least-once sources only), library resolution,
// routing, then the coordinator. Resolution may hit the catalog server;
// it happens before any coordinator state is touched.
//
// Ingest never returns an error to the producer. Events that do not
// survive the pipeline are logged and published on the bus.
func (e *Engine) Ingest(ctx context.Context, ev media.RawEvent) {
	if !ev.Valid() {
		e.publish(eventbus.EventRejected, map[string]any{"item": ev.ItemID, "source": string(ev.Source)})
		e.log.Debug("event rejected", logx.String("item", ev.ItemID), logx.String("source", string(ev.Source)))
		return
	}
	if ev.ObservedAt.IsZero() {
		ev.ObservedAt = time.Now()
	}

	e.mu.RLock()
	allowed := e.toggles.Allows(ev.ItemType)
	e.mu.RUnlock()
	if !allowed {
		e.log.Trace("event type disabled", logx.String("item", ev.ItemID), logx.String("type", string(ev.ItemType)))
		return
	}

	if ev.Source.Deduplicated() && !e.dedup.ShouldProcess(ev.ItemID) {
		e.publish(eventbus.EventDeduped, map[string]any{"item": ev.ItemID, "source": string(ev.Source)})
		e.log.Trace("duplicate event dropped", logx.String("item", ev.ItemID), logx.String("source", string(ev.Source)))
		return
	}

	e.publish(eventbus.EventIngested, map[string]any{
		"item": ev.ItemID, "type": string(ev.ItemType), "source": string(ev.Source),
	})

	libraryID := ""
	if e.resolver != nil {
		libraryID = e.resolver.Resolve(ctx, ev.ItemID, ev.ItemType, ev.LibraryHint)
	}

	var target transport.ChatTarget
	ok := true
	if e.router != nil {
		target, ok = e.router.Route(libraryID)
	}
	if !ok {
		e.publish(eventbus.EventSuppressed, map[string]any{"item": ev.ItemID, "library": libraryID, "reason": "unrouted"})
		e.log.Debug("event suppressed by routing",
			logx.String("item", ev.ItemID), logx.String("library", libraryID))
		return
	}
	e.publish(eventbus.EventRouted, map[string]any{"item": ev.ItemID, "library": libraryID, "chat": target.ChatID})

	e.coord.Offer(ev, libraryID, target)
}

func (e *Engine) publish(typ string, data any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
