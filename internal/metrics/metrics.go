// Package metrics exposes pipeline counters over the default
// Prometheus registry. The webhook listener serves them at /metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"shelfwatch/internal/eventbus"
)

var (
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwatch_events_ingested_total",
			Help: "Item-added events accepted into the pipeline",
		},
		[]string{"source", "type"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwatch_events_dropped_total",
			Help: "Events discarded before coalescing",
		},
		[]string{"reason"}, // "rejected", "deduped", "suppressed", "unrouted"
	)

	WindowsFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfwatch_windows_fired_total",
			Help: "Debounce windows that fired a notification",
		},
	)

	NotificationsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfwatch_notifications_sent_total",
			Help: "Messages delivered to the transport",
		},
	)

	NotificationsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfwatch_notifications_failed_total",
			Help: "Messages that exhausted delivery retries",
		},
	)

	PendingWindows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfwatch_pending_windows",
			Help: "Debounce windows currently open",
		},
	)
)

// PendingFunc reports the number of open windows; satisfied by
// engine.Engine.Pending.
type PendingFunc func() int

// Collect subscribes to the bus and feeds the counters until ctx ends.
// Run it under the supervisor next to the engine.
func Collect(ctx context.Context, bus eventbus.Bus, pending PendingFunc) error {
	ch, unsub := bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			record(e)
			if pending != nil {
				PendingWindows.Set(float64(pending()))
			}
		}
	}
}

func record(e eventbus.Event) {
	data, _ := e.Data.(map[string]any)
	str := func(k string) string {
		if data == nil {
			return ""
		}
		s, _ := data[k].(string)
		return s
	}

	switch e.Type {
	case eventbus.EventIngested:
		EventsIngested.WithLabelValues(str("source"), str("type")).Inc()
	case eventbus.EventRejected:
		EventsDropped.WithLabelValues("rejected").Inc()
	case eventbus.EventDeduped:
		EventsDropped.WithLabelValues("deduped").Inc()
	case eventbus.EventSuppressed:
		reason := str("reason")
		if reason == "" {
			reason = "suppressed"
		}
		EventsDropped.WithLabelValues(reason).Inc()
	case eventbus.EventCoalesced:
		WindowsFired.Inc()
	case eventbus.EventSent:
		NotificationsSent.Inc()
	case eventbus.EventFailed:
		NotificationsFailed.Inc()
	}
}
