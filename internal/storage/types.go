package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string // "sqlite" or "none"
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// NotificationRecord is one delivery attempt, kept for operator
// visibility. Schema-stable; keep it compact.
type NotificationRecord struct {
	ID       string
	At       time.Time
	ChatID   int64
	ThreadID int
	Key      string
	Text     string
	Status   string // "sent" or "failed"
	Error    string
}
