package config

type Config struct {
	Jellyfin JellyfinConfig `json:"jellyfin"`
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	Webhook WebhookConfig `json:"webhook"`
	Poller  PollerConfig  `json:"poller,omitempty"`
	Socket  SocketConfig  `json:"socket,omitempty"`

	Engine    EngineConfig    `json:"engine"`
	Libraries LibrariesConfig `json:"libraries,omitempty"`
	Routing   RoutingConfig   `json:"routing"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

// JellyfinConfig points at the media server.
type JellyfinConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	UserID  string `json:"user_id,omitempty"`
	// Timeout is a Go duration string for catalog round trips.
	Timeout string `json:"timeout,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// GroupLog is an optional "chatID" or "chatID:threadID" target for
	// the telegram log sink.
	GroupLog string `json:"group_log,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// WebhookConfig controls the push listener. It also serves /healthz and
// /metrics, so it stays enabled by default.
type WebhookConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":8097"
	Token   string `json:"token,omitempty"`
}

// PollerConfig controls the periodic recently-added sweep.
type PollerConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron expression or "@every 5m" descriptor.
	Schedule string `json:"schedule,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	// Timeout is a Go duration string for one poll.
	Timeout string `json:"timeout,omitempty"`
}

// SocketConfig controls the websocket session.
type SocketConfig struct {
	Enabled bool `json:"enabled"`
	// KeepAlive is a Go duration string between client keepalive frames.
	KeepAlive string `json:"keep_alive,omitempty"`
}

// EngineConfig tunes the coalescing pipeline.
//
// All durations are Go duration strings (e.g. "60s", "24h").
type EngineConfig struct {
	// Window is how long a debounce window stays open after the first
	// event for a content unit. It is never extended.
	Window string `json:"window,omitempty"`
	// DedupRetention bounds the duplicate-observation cache.
	DedupRetention string `json:"dedup_retention,omitempty"`
	// SentRetention bounds sent-record suppression.
	SentRetention string `json:"sent_retention,omitempty"`

	Notify NotifyToggles `json:"notify"`
}

// NotifyToggles enables notifications per item type. Pointers so an
// omitted field defaults to enabled.
type NotifyToggles struct {
	Movies   *bool `json:"movies,omitempty"`
	Series   *bool `json:"series,omitempty"`
	Seasons  *bool `json:"seasons,omitempty"`
	Episodes *bool `json:"episodes,omitempty"`
}

// LibrariesConfig tunes the virtual-folder cache.
type LibrariesConfig struct {
	// RefreshTTL is a Go duration string; library records older than this
	// are refetched on next use.
	RefreshTTL string `json:"refresh_ttl,omitempty"`
}

// RoutingConfig maps library ids to chat targets.
//
// Targets are "chatID" or "chatID:threadID" strings. An empty mapping
// sends everything to Default. With a non-empty mapping, unmapped
// libraries are suppressed; a mapped key with a blank value falls back
// to Default.
type RoutingConfig struct {
	Default string            `json:"default"`
	Mapping map[string]string `json:"mapping,omitempty"`
}

// NotifierConfig controls the async delivery pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// If the whole section is omitted, the notifier defaults to enabled.
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./shelfwatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
