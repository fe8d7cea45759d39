package library

import (
	"context"
	"errors"

	"shelfwatch/internal/jellyfin"
	"shelfwatch/internal/media"
	logx "shelfwatch/pkg/logx"
)

// Catalog is the subset of the server client the resolver walks.
type Catalog interface {
	Item(ctx context.Context, id string) (*jellyfin.Item, error)
	Ancestors(ctx context.Context, id string) ([]jellyfin.Item, error)
}

// RecordSource yields the current library snapshot.
type RecordSource interface {
	Records(ctx context.Context) []Record
}

// walkOutcome distinguishes "walked off the top" from "hit the depth
// limit"; both resolve to no match but are logged differently.
type walkOutcome int

const (
	walkNoMatch walkOutcome = iota
	walkExhausted
)

// maxWalkDepth bounds the iterative parent walk. Some catalog layouts
// contain cyclic or unexpectedly deep container nesting.
const maxWalkDepth = 5

// Resolver determines which configured library owns an item.
//
// All lookups happen before the event enters the coordinator, so the
// resolver may block on network calls freely. Individual lookup failures
// are logged and treated as non-matches; resolution continues with the
// remaining strategies.
type Resolver struct {
	cat  Catalog
	libs RecordSource
	log  logx.Logger
}

func NewResolver(cat Catalog, libs RecordSource, log logx.Logger) *Resolver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Resolver{cat: cat, libs: libs, log: log}
}

// Resolve returns the owning library's virtual id, or "" when no
// strategy matched. Callers must treat "" as "route to default target",
// not as an error.
func (r *Resolver) Resolve(ctx context.Context, itemID string, itemType media.ItemType, hint string) string {
	records := r.libs.Records(ctx)
	if len(records) == 0 {
		return ""
	}

	// 1. Explicit hint from the producer.
	if hint != "" {
		for _, rec := range records {
			if !rec.ContentType.Compatible(itemType) {
				continue
			}
			if hint == rec.CollectionID || hint == rec.VirtualID {
				return rec.VirtualID
			}
		}
	}

	// 2. Ancestor chain, nearest container first.
	ancestors, err := r.cat.Ancestors(ctx, itemID)
	if err != nil {
		r.log.Debug("ancestor lookup failed", logx.String("item", itemID), logx.Err(err))
	}
	for _, anc := range ancestors {
		if id := matchRecords(records, itemType, anc.ID, anc.Path); id != "" {
			return id
		}
	}

	// 3. Bounded iterative parent walk.
	if id, outcome := r.walkParents(ctx, itemID, itemType, records); id != "" {
		return id
	} else if outcome == walkExhausted {
		r.log.Debug("parent walk exhausted", logx.String("item", itemID), logx.Int("depth", maxWalkDepth))
	}

	// 4. Reverse check: a library nested under a generic collection is a
	// descendant of the unresolved node rather than its ancestor.
	for _, rec := range records {
		if !rec.ContentType.Compatible(itemType) {
			continue
		}
		libAncestors, err := r.cat.Ancestors(ctx, rec.CollectionID)
		if err != nil {
			r.log.Debug("library ancestor lookup failed", logx.String("library", rec.Name), logx.Err(err))
			continue
		}
		for _, anc := range libAncestors {
			if anc.ID == itemID {
				return rec.VirtualID
			}
		}
	}

	return ""
}

func (r *Resolver) walkParents(ctx context.Context, itemID string, itemType media.ItemType, records []Record) (string, walkOutcome) {
	item, err := r.cat.Item(ctx, itemID)
	if err != nil {
		if !errors.Is(err, jellyfin.ErrNotFound) {
			r.log.Debug("item lookup failed", logx.String("item", itemID), logx.Err(err))
		}
		return "", walkNoMatch
	}

	parentID := item.ParentID
	for depth := 0; parentID != ""; depth++ {
		if depth >= maxWalkDepth {
			return "", walkExhausted
		}
		parent, err := r.cat.Item(ctx, parentID)
		if err != nil {
			if !errors.Is(err, jellyfin.ErrNotFound) {
				r.log.Debug("parent lookup failed", logx.String("item", parentID), logx.Err(err))
			}
			return "", walkNoMatch
		}
		if id := matchRecords(records, itemType, parent.ID, parent.Path); id != "" {
			return id, walkNoMatch
		}
		parentID = parent.ParentID
	}
	return "", walkNoMatch
}

func matchRecords(records []Record, itemType media.ItemType, nodeID, nodePath string) string {
	for _, rec := range records {
		if !rec.ContentType.Compatible(itemType) {
			continue
		}
		if rec.Matches(nodeID, nodePath) {
			return rec.VirtualID
		}
	}
	return ""
}
