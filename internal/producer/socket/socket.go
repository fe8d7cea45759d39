// Package socket maintains a websocket session against the media
// server and turns LibraryChanged pushes into events. The server only
// sends item ids over the socket, so each id costs one catalog lookup
// before ingest.
package socket

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"shelfwatch/internal/jellyfin"
	"shelfwatch/internal/media"
	logx "shelfwatch/pkg/logx"
)

// Catalog is the slice of the server client the socket needs.
type Catalog interface {
	SocketURL() string
	Item(ctx context.Context, id string) (*jellyfin.Item, error)
}

// Sink receives normalized events; satisfied by engine.Engine.
type Sink interface {
	Ingest(ctx context.Context, ev media.RawEvent)
}

type Config struct {
	// KeepAlive is the interval between client keepalive frames.
	KeepAlive time.Duration
	// LookupTimeout bounds the catalog fetch per pushed id.
	LookupTimeout time.Duration
}

// frame is the server's websocket envelope.
type frame struct {
	MessageType string          `json:"MessageType"`
	Data        json.RawMessage `json:"Data,omitempty"`
}

// libraryChanged is the Data payload of a LibraryChanged frame.
type libraryChanged struct {
	ItemsAdded   []string `json:"ItemsAdded"`
	ItemsUpdated []string `json:"ItemsUpdated"`
	ItemsRemoved []string `json:"ItemsRemoved"`
}

type Listener struct {
	cfg     Config
	catalog Catalog
	sink    Sink
	log     logx.Logger
}

func New(cfg Config, catalog Catalog, sink Sink, log logx.Logger) *Listener {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 30 * time.Second
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Listener{cfg: cfg, catalog: catalog, sink: sink, log: log}
}

// Run holds one socket session until it breaks or ctx ends. It returns
// the disconnect error so a restarting supervisor can drive reconnects
// with backoff.
func (l *Listener) Run(ctx context.Context) error {
	u := l.catalog.SocketURL()

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("socket dial: %w", err)
	}
	defer conn.Close()
	l.log.Info("socket session opened")

	// Reader goroutine owns all reads; the main loop owns writes. The
	// session can end while ctx is still live (keepalive write failure
	// under a restarting supervisor), so the reader watches the session's
	// own done channel, not just ctx.
	frames := make(chan frame)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- f:
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	keepalive := time.NewTicker(l.cfg.KeepAlive)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return ctx.Err()
		case err := <-readErr:
			return fmt.Errorf("socket read: %w", err)
		case <-keepalive.C:
			if err := conn.WriteJSON(frame{MessageType: "KeepAlive"}); err != nil {
				return fmt.Errorf("socket keepalive: %w", err)
			}
		case f := <-frames:
			l.handle(ctx, f)
		}
	}
}

func (l *Listener) handle(ctx context.Context, f frame) {
	switch f.MessageType {
	case "LibraryChanged":
		var lc libraryChanged
		if err := json.Unmarshal(f.Data, &lc); err != nil {
			l.log.Debug("malformed LibraryChanged frame", logx.Err(err))
			return
		}
		l.log.Debug("library changed", logx.Int("added", len(lc.ItemsAdded)))
		for _, id := range lc.ItemsAdded {
			l.ingestID(ctx, id)
		}
	case "ForceKeepAlive", "KeepAlive":
		// Server-driven keepalive; our ticker already answers.
	default:
		l.log.Trace("socket frame ignored", logx.String("type", f.MessageType))
	}
}

func (l *Listener) ingestID(ctx context.Context, id string) {
	lookupCtx, cancel := context.WithTimeout(ctx, l.cfg.LookupTimeout)
	defer cancel()

	it, err := l.catalog.Item(lookupCtx, id)
	if err != nil {
		// Transient server-side races are common right after import; the
		// poller sweep will pick the item up later.
		l.log.Debug("pushed item lookup failed", logx.String("item", id), logx.Err(err))
		return
	}

	ev := media.RawEvent{
		ItemID:        it.ID,
		ItemType:      media.ParseItemType(it.Type),
		Source:        media.SourceSocket,
		SeriesID:      it.SeriesID,
		ParentID:      it.ParentID,
		Name:          it.Name,
		SeriesName:    it.SeriesName,
		Year:          it.ProductionYear,
		Overview:      it.Overview,
		SeasonNumber:  it.ParentIndexNumber,
		EpisodeNumber: it.IndexNumber,
		ProviderIDs:   it.ProviderIDs,
		ObservedAt:    time.Now(),
	}
	if !ev.Valid() {
		return
	}
	l.sink.Ingest(ctx, ev)
}
