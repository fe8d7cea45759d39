package jellyfin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	logx "shelfwatch/pkg/logx"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, APIKey: "key", UserID: "user-1"}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestItemFound(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Items" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-Emby-Token") != "key" {
			t.Errorf("token header missing")
		}
		if r.URL.Query().Get("ids") != "ep-1" {
			t.Errorf("ids = %s", r.URL.Query().Get("ids"))
		}
		_, _ = w.Write([]byte(`{"Items":[{"Id":"ep-1","Name":"The Target","Type":"Episode","SeriesId":"s1"}],"TotalRecordCount":1}`))
	})

	it, err := c.Item(context.Background(), "ep-1")
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if it.ID != "ep-1" || it.Type != "Episode" || it.SeriesID != "s1" {
		t.Fatalf("item = %+v", it)
	}
}

func TestItemNotFound(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Items":[],"TotalRecordCount":0}`))
	})
	if _, err := c.Item(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := c.Item(context.Background(), ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty id err = %v, want ErrNotFound", err)
	}
}

func TestAncestors(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Items/ep-1/Ancestors" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"Id":"season-1","Type":"Season"},{"Id":"col-tv","Type":"CollectionFolder"}]`))
	})
	anc, err := c.Ancestors(context.Background(), "ep-1")
	if err != nil {
		t.Fatalf("Ancestors: %v", err)
	}
	if len(anc) != 2 || anc[0].ID != "season-1" {
		t.Fatalf("ancestors = %+v", anc)
	}
}

func TestLatest(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users/user-1/Items/Latest" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("groupItems") != "false" {
			t.Errorf("groupItems = %s", r.URL.Query().Get("groupItems"))
		}
		_, _ = w.Write([]byte(`[{"Id":"m1","Type":"Movie","Name":"Heat"}]`))
	})
	items, err := c.Latest(context.Background(), 10)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(items) != 1 || items[0].ID != "m1" {
		t.Fatalf("items = %+v", items)
	}
}

func TestServerErrorSurfaced(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := c.VirtualFolders(context.Background())
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("err = %v, want status 500", err)
	}
}

func TestSocketURL(t *testing.T) {
	t.Parallel()
	c, err := New(Config{BaseURL: "https://media.example.com/jf", APIKey: "k&y"}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	u := c.SocketURL()
	if !strings.HasPrefix(u, "wss://media.example.com/jf/socket?api_key=") {
		t.Fatalf("SocketURL = %s", u)
	}
	if strings.Contains(u, "k&y") {
		t.Fatalf("api key not escaped: %s", u)
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{APIKey: "k"}, logx.Nop()); err == nil {
		t.Fatal("missing base url accepted")
	}
	if _, err := New(Config{BaseURL: "http://x"}, logx.Nop()); err == nil {
		t.Fatal("missing api key accepted")
	}
}
