package notify

import "time"

// Config controls the async delivery pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
}

// HistoryItem is one recently attempted delivery, kept in memory for
// operator visibility.
type HistoryItem struct {
	ID   string
	At   time.Time
	Text string
	OK   bool
}

// DeliveryEvent is emitted on the event bus for pipeline lifecycle
// events. Keep it small; Data may be logged/serialized by subscribers.
type DeliveryEvent struct {
	Channel  string    `json:"channel"`
	ChatID   int64     `json:"chat_id"`
	ThreadID int       `json:"thread_id,omitempty"`
	Key      string    `json:"key"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}
