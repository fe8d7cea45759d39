// Package jellyfin is a minimal REST client for the catalog lookups the
// engine needs: single items, ancestor chains, configured libraries, and
// the recently-added feed used by the polling producer.
package jellyfin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	logx "shelfwatch/pkg/logx"
)

var ErrNotFound = errors.New("jellyfin: item not found")

type Config struct {
	BaseURL string
	APIKey  string
	// UserID scopes the Items/Latest feed used by the poller.
	UserID  string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	base *url.URL
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("jellyfin base url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("jellyfin base url: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("jellyfin api key is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		base: u,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}, nil
}

// SocketURL returns the websocket endpoint for the push feed.
func (c *Client) SocketURL() string {
	scheme := "ws"
	if c.base.Scheme == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s%s/socket?api_key=%s", scheme, c.base.Host, c.base.Path, url.QueryEscape(c.cfg.APIKey))
}

// Item fetches a single item with the metadata fields the assembler and
// resolver use. Returns ErrNotFound for unknown ids.
func (c *Client) Item(ctx context.Context, id string) (*Item, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	q := url.Values{}
	q.Set("ids", id)
	q.Set("fields", "Path,ParentId,Overview,Genres,ProviderIds")
	q.Set("recursive", "true")

	var page itemsPage
	if err := c.get(ctx, "/Items", q, &page); err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, ErrNotFound
	}
	it := page.Items[0]
	return &it, nil
}

// Ancestors returns the container chain above an item, nearest first.
func (c *Client) Ancestors(ctx context.Context, id string) ([]Item, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	var out []Item
	if err := c.get(ctx, "/Items/"+url.PathEscape(id)+"/Ancestors", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// VirtualFolders lists the configured libraries.
func (c *Client) VirtualFolders(ctx context.Context) ([]VirtualFolder, error) {
	var out []VirtualFolder
	if err := c.get(ctx, "/Library/VirtualFolders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Latest returns recently added items for the configured user, ungrouped
// so every episode shows up individually.
func (c *Client) Latest(ctx context.Context, limit int) ([]Item, error) {
	uid := strings.TrimSpace(c.cfg.UserID)
	if uid == "" {
		return nil, errors.New("jellyfin user id is empty")
	}
	if limit <= 0 {
		limit = 50
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("groupItems", "false")
	q.Set("fields", "Path,ParentId,Overview,Genres,ProviderIds")

	var out []Item
	if err := c.get(ctx, "/Users/"+url.PathEscape(uid)+"/Items/Latest", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Emby-Token", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("jellyfin GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		// Drain a little for the error message, then bail.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("jellyfin GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("jellyfin GET %s: decode: %w", path, err)
	}
	return nil
}
