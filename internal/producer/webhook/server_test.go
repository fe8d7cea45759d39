package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shelfwatch/internal/media"
	logx "shelfwatch/pkg/logx"
)

type recordingSink struct {
	events []media.RawEvent
}

func (r *recordingSink) Ingest(_ context.Context, ev media.RawEvent) {
	r.events = append(r.events, ev)
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

const itemAddedBody = `{
	"NotificationType": "ItemAdded",
	"ItemId": "ep-1",
	"ItemType": "Episode",
	"Name": "The Target",
	"SeriesId": "series-1",
	"SeriesName": "The Wire",
	"SeasonNumber": 1,
	"EpisodeNumber": 1,
	"LibraryId": "vf-tv",
	"Provider_imdb": "tt0749451"
}`

func TestWebhookItemAdded(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	h := NewServer(Config{}, sink, logx.Nop()).Handler()

	w := post(t, h, "/webhook/jellyfin", itemAddedBody)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if len(sink.events) != 1 {
		t.Fatalf("ingested = %d, want 1", len(sink.events))
	}
	ev := sink.events[0]
	if ev.ItemID != "ep-1" || ev.ItemType != media.TypeEpisode || ev.Source != media.SourceWebhook {
		t.Fatalf("event wrong: %+v", ev)
	}
	if ev.SeriesID != "series-1" || ev.LibraryHint != "vf-tv" {
		t.Fatalf("grouping/hint lost: %+v", ev)
	}
	if ev.SeasonNumber != 1 || ev.EpisodeNumber != 1 {
		t.Fatalf("numbers lost: %+v", ev)
	}
	if ev.ProviderIDs["imdb"] != "tt0749451" {
		t.Fatalf("provider ids lost: %+v", ev.ProviderIDs)
	}
}

func TestWebhookMalformedPayload(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	h := NewServer(Config{}, sink, logx.Nop()).Handler()

	w := post(t, h, "/webhook/jellyfin", `{"NotificationType": `)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(sink.events) != 0 {
		t.Fatal("malformed payload ingested")
	}
}

func TestWebhookIgnoresOtherNotificationTypes(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	h := NewServer(Config{}, sink, logx.Nop()).Handler()

	w := post(t, h, "/webhook/jellyfin", `{"NotificationType":"PlaybackStart","ItemId":"x","ItemType":"Movie"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if len(sink.events) != 0 {
		t.Fatal("non-ItemAdded notification ingested")
	}
}

func TestWebhookTokenAuth(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	h := NewServer(Config{Token: "s3cret"}, sink, logx.Nop()).Handler()

	if w := post(t, h, "/webhook/jellyfin", itemAddedBody); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", w.Code)
	}
	if w := post(t, h, "/webhook/jellyfin?token=wrong", itemAddedBody); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d, want 401", w.Code)
	}
	if w := post(t, h, "/webhook/jellyfin?token=s3cret", itemAddedBody); w.Code != http.StatusNoContent {
		t.Fatalf("valid token: status = %d, want 204", w.Code)
	}
	if len(sink.events) != 1 {
		t.Fatalf("ingested = %d, want 1", len(sink.events))
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := NewServer(Config{}, &recordingSink{}, logx.Nop()).Handler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", w.Code)
	}
}
