// Package router maps a resolved library to a delivery target.
//
// An empty mapping sends everything to the default target. A non-empty
// mapping is an allowlist: libraries without an entry (including
// unresolved events) are suppressed outright.
package router

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"shelfwatch/internal/transport"
)

// Config is the library-to-target table as it appears in configuration.
// Targets are "chatID" or "chatID:threadID" strings; a blank mapped value
// falls through to the default target.
type Config struct {
	Default string
	Mapping map[string]string
}

type Router struct {
	mu      sync.RWMutex
	def     transport.ChatTarget
	mapping map[string]transport.ChatTarget // blank values resolve to def at Apply time
	empty   bool
}

func New(cfg Config) (*Router, error) {
	r := &Router{}
	if err := r.Apply(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// Apply swaps the routing table. Used on config hot reload.
func (r *Router) Apply(cfg Config) error {
	def, err := ParseTarget(cfg.Default)
	if err != nil {
		return fmt.Errorf("router default target: %w", err)
	}

	mapping := make(map[string]transport.ChatTarget, len(cfg.Mapping))
	for lib, raw := range cfg.Mapping {
		if strings.TrimSpace(raw) == "" {
			mapping[lib] = def
			continue
		}
		t, err := ParseTarget(raw)
		if err != nil {
			return fmt.Errorf("router target for %q: %w", lib, err)
		}
		mapping[lib] = t
	}

	r.mu.Lock()
	r.def = def
	r.mapping = mapping
	r.empty = len(mapping) == 0
	r.mu.Unlock()
	return nil
}

// Route returns the delivery target for a library id ("" for unresolved)
// and whether the event should be delivered at all.
func (r *Router) Route(libraryID string) (transport.ChatTarget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.empty {
		return r.def, true
	}
	if t, ok := r.mapping[libraryID]; ok {
		return t, true
	}
	return transport.ChatTarget{}, false
}

// ParseTarget parses "chatID" or "chatID:threadID". Blank input yields a
// zero target.
func ParseTarget(raw string) (transport.ChatTarget, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return transport.ChatTarget{}, nil
	}
	chatPart, threadPart, hasThread := strings.Cut(raw, ":")
	chatID, err := strconv.ParseInt(strings.TrimSpace(chatPart), 10, 64)
	if err != nil {
		return transport.ChatTarget{}, fmt.Errorf("invalid chat id %q", chatPart)
	}
	t := transport.ChatTarget{ChatID: chatID}
	if hasThread {
		threadID, err := strconv.Atoi(strings.TrimSpace(threadPart))
		if err != nil {
			return transport.ChatTarget{}, fmt.Errorf("invalid thread id %q", threadPart)
		}
		t.ThreadID = threadID
	}
	return t, nil
}
