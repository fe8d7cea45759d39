package library

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"shelfwatch/internal/jellyfin"
	logx "shelfwatch/pkg/logx"
)

// FolderSource lists the server's configured libraries.
type FolderSource interface {
	VirtualFolders(ctx context.Context) ([]jellyfin.VirtualFolder, error)
}

// Provider caches the library record snapshot. Records change rarely
// (an operator adding a library), so a TTL-cached snapshot per
// resolution cycle is enough; concurrent refreshes collapse into one
// upstream call.
type Provider struct {
	src FolderSource
	ttl time.Duration
	log logx.Logger

	sf singleflight.Group

	mu        sync.RWMutex
	records   []Record
	fetchedAt time.Time
}

func NewProvider(src FolderSource, ttl time.Duration, log logx.Logger) *Provider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Provider{src: src, ttl: ttl, log: log}
}

// Records returns the current snapshot, refreshing it when stale. On
// refresh failure a stale snapshot is served rather than none.
func (p *Provider) Records(ctx context.Context) []Record {
	p.mu.RLock()
	recs := p.records
	age := time.Since(p.fetchedAt)
	p.mu.RUnlock()

	if recs != nil && age < p.ttl {
		return recs
	}

	v, err, _ := p.sf.Do("refresh", func() (any, error) {
		folders, err := p.src.VirtualFolders(ctx)
		if err != nil {
			return nil, err
		}
		fresh := FromVirtualFolders(folders)
		p.mu.Lock()
		p.records = fresh
		p.fetchedAt = time.Now()
		p.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		p.log.Warn("library snapshot refresh failed", logx.Err(err))
		return recs
	}
	out, _ := v.([]Record)
	return out
}

// Invalidate forces the next Records call to refresh.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.fetchedAt = time.Time{}
	p.mu.Unlock()
}
