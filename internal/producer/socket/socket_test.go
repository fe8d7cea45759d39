package socket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"shelfwatch/internal/jellyfin"
	"shelfwatch/internal/media"
	logx "shelfwatch/pkg/logx"
)

type fakeCatalog struct {
	url   string
	delay time.Duration

	mu    sync.Mutex
	calls []string
}

func (c *fakeCatalog) SocketURL() string { return c.url }

func (c *fakeCatalog) Item(ctx context.Context, id string) (*jellyfin.Item, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	c.calls = append(c.calls, id)
	c.mu.Unlock()
	return &jellyfin.Item{ID: id, Type: "Movie", Name: "Item " + id}, nil
}

type memSink struct {
	mu  sync.Mutex
	evs []media.RawEvent
}

func (s *memSink) Ingest(_ context.Context, ev media.RawEvent) {
	s.mu.Lock()
	s.evs = append(s.evs, ev)
	s.mu.Unlock()
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.evs)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

const libraryChangedFrame = `{"MessageType":"LibraryChanged","Data":{"ItemsAdded":["a","b"]}}`

func TestSocketIngestsLibraryChangedFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		if err := c.WriteMessage(websocket.TextMessage, []byte(libraryChangedFrame)); err != nil {
			return
		}
		// Drain client frames until it disconnects.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	cat := &fakeCatalog{url: wsURL(srv.URL)}
	sink := &memSink{}
	l := New(Config{KeepAlive: time.Hour}, cat, sink, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	if !waitFor(t, 3*time.Second, func() bool { return sink.count() == 2 }) {
		t.Fatalf("ingested = %d, want 2", sink.count())
	}
	sink.mu.Lock()
	got := sink.evs[0]
	sink.mu.Unlock()
	if got.Source != media.SourceSocket || got.ItemID != "a" || got.ItemType != media.TypeMovie {
		t.Fatalf("event not normalized from catalog lookup: %+v", got)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSocketSessionEndReleasesReader(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Two frames back to back, then a hard close: the second frame is
		// in flight while the session tears down.
		_ = c.WriteMessage(websocket.TextMessage, []byte(libraryChangedFrame))
		_ = c.WriteMessage(websocket.TextMessage, []byte(libraryChangedFrame))
		_ = c.NetConn().Close()
	}))
	defer srv.Close()

	// Slow lookups keep the main loop busy so the reader is parked on its
	// forward send when the session ends. ctx stays live the whole time,
	// as it does under the restarting supervisor.
	cat := &fakeCatalog{url: wsURL(srv.URL), delay: 30 * time.Millisecond}
	sink := &memSink{}
	l := New(Config{KeepAlive: 5 * time.Millisecond}, cat, sink, logx.Nop())

	before := runtime.NumGoroutine()
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		errCh := make(chan error, 1)
		go func() { errCh <- l.Run(ctx) }()
		select {
		case err := <-errCh:
			if err == nil {
				t.Fatal("session ended without error despite server close")
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after server close")
		}
	}

	if !waitFor(t, 3*time.Second, func() bool { return runtime.NumGoroutine() <= before+2 }) {
		t.Fatalf("reader goroutines leaked: %d before, %d after", before, runtime.NumGoroutine())
	}
}
