package engine

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"shelfwatch/internal/eventbus"
	"shelfwatch/internal/media"
	"shelfwatch/internal/transport"
	logx "shelfwatch/pkg/logx"
)

// Coalesced is one fired debounce window: the highest-level event seen
// for the grouping key, the number of episode events that arrived while
// the window was open, and the routing already attached on ingest.
type Coalesced struct {
	Event     media.RawEvent
	UnitCount int
	LibraryID string
	Target    transport.ChatTarget
}

// EmitFunc receives fired windows. It is invoked outside the
// coordinator's lock and may block on network I/O.
type EmitFunc func(c Coalesced)

type entry struct {
	latest    media.RawEvent
	unitCount int
	libraryID string
	target    transport.ChatTarget
	deadline  time.Time
}

// Coordinator is the per-key debounce state machine. For every grouping
// key it holds at most one pending entry with a fixed expiry; the window
// is never extended by later events, so a sustained event stream still
// notifies within one window of the first event.
type Coordinator struct {
	mu      sync.Mutex
	entries map[string]*entry
	queue   deadlineQueue

	window time.Duration
	sent   *SentRecords

	emit EmitFunc
	bus  eventbus.Bus
	log  logx.Logger
	now  func() time.Time
	wake chan struct{}
}

func NewCoordinator(window time.Duration, sent *SentRecords, emit EmitFunc, bus eventbus.Bus, log logx.Logger) *Coordinator {
	if window <= 0 {
		window = 60 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Coordinator{
		entries: map[string]*entry{},
		window:  window,
		sent:    sent,
		emit:    emit,
		bus:     bus,
		log:     log,
		now:     time.Now,
		wake:    make(chan struct{}, 1),
	}
}

// SetWindow changes the coalescing window for windows opened afterwards.
// Already-pending entries keep their original deadline.
func (c *Coordinator) SetWindow(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.window = d
	c.mu.Unlock()
}

// Pending returns the number of open windows.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Offer feeds one resolved, routed event into the state machine.
//
// Grouped events open or join a window; singletons emit immediately.
// Events covered by an unexpired sent record of equal or higher level
// are dropped with no state change.
func (c *Coordinator) Offer(ev media.RawEvent, libraryID string, target transport.ChatTarget) {
	key := ev.GroupKey()

	if c.sent.Suppressed(key, ev.Level()) {
		c.publish(eventbus.EventSuppressed, map[string]any{"item": ev.ItemID, "key": key})
		c.log.Debug("event suppressed by sent record",
			logx.String("item", ev.ItemID), logx.String("key", key), logx.String("type", string(ev.ItemType)))
		return
	}

	if !ev.Grouped() {
		// Singleton: no coalescing window, immediate hand-off.
		c.sent.Record(key, ev.Level())
		c.fire(Coalesced{Event: ev, LibraryID: libraryID, Target: target})
		return
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{
			latest:    ev,
			libraryID: libraryID,
			target:    target,
			deadline:  c.now().Add(c.window),
		}
		if ev.ItemType == media.TypeEpisode {
			e.unitCount = 1
		}
		c.entries[key] = e
		heap.Push(&c.queue, deadline{at: e.deadline, key: key})
		c.mu.Unlock()

		c.wakeLoop()
		c.log.Debug("debounce window opened",
			logx.String("key", key), logx.String("item", ev.ItemID), logx.Duration("window", c.window))
		return
	}

	// Window already open: merge. The representative event is replaced on
	// >=, so equal-level repeats keep the most recent metadata.
	if ev.Level() >= e.latest.Level() {
		e.latest = ev
		e.libraryID = libraryID
		e.target = target
	}
	if ev.ItemType == media.TypeEpisode {
		e.unitCount++
	}
	c.mu.Unlock()
}

// Run polls the deadline queue and fires due windows until ctx ends.
// It also sweeps expired sent records on a slow cadence.
func (c *Coordinator) Run(ctx context.Context) error {
	sweep := time.NewTicker(10 * time.Minute)
	defer sweep.Stop()

	for {
		next, ok := c.nextDeadline()

		var timerC <-chan time.Time
		if ok {
			d := time.Until(next)
			if d < 0 {
				d = 0
			}
			t := time.NewTimer(d)
			timerC = t.C
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-c.wake:
				t.Stop()
				continue
			case <-sweep.C:
				t.Stop()
				c.sent.Sweep()
				continue
			case <-timerC:
			}
			c.fireDue(c.now())
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		case <-sweep.C:
			c.sent.Sweep()
		}
	}
}

func (c *Coordinator) nextDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return time.Time{}, false
	}
	return c.queue[0].at, true
}

// fireDue pops every due window and emits it. Emission happens outside
// the lock; no network call ever runs while debounce state is held.
func (c *Coordinator) fireDue(now time.Time) {
	var ready []Coalesced

	c.mu.Lock()
	for len(c.queue) > 0 && !c.queue[0].at.After(now) {
		d := heap.Pop(&c.queue).(deadline)
		e, ok := c.entries[d.key]
		if !ok || e.deadline.After(now) {
			// Entry already fired or re-opened with a later deadline.
			continue
		}
		delete(c.entries, d.key)
		c.sent.Record(d.key, e.latest.Level())
		ready = append(ready, Coalesced{
			Event:     e.latest,
			UnitCount: e.unitCount,
			LibraryID: e.libraryID,
			Target:    e.target,
		})
	}
	c.mu.Unlock()

	for _, co := range ready {
		c.fire(co)
	}
}

func (c *Coordinator) fire(co Coalesced) {
	c.publish(eventbus.EventCoalesced, map[string]any{
		"item":  co.Event.ItemID,
		"key":   co.Event.GroupKey(),
		"type":  string(co.Event.ItemType),
		"count": co.UnitCount,
	})
	c.log.Info("coalesced notification",
		logx.String("item", co.Event.ItemID),
		logx.String("type", string(co.Event.ItemType)),
		logx.Int("episodes", co.UnitCount))
	if c.emit != nil {
		c.emit(co)
	}
}

func (c *Coordinator) wakeLoop() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Coordinator) publish(typ string, data any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
