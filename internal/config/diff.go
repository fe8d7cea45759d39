package config

import (
	"reflect"
	"sort"
	"strings"

	logx "shelfwatch/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus
// safe structured attrs for logging. Secrets (tokens, api keys) are
// reported only as set/unset.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 24)

	if strings.TrimSpace(oldCfg.Jellyfin.BaseURL) != strings.TrimSpace(newCfg.Jellyfin.BaseURL) ||
		strings.TrimSpace(oldCfg.Jellyfin.UserID) != strings.TrimSpace(newCfg.Jellyfin.UserID) ||
		strings.TrimSpace(oldCfg.Jellyfin.Timeout) != strings.TrimSpace(newCfg.Jellyfin.Timeout) ||
		(strings.TrimSpace(oldCfg.Jellyfin.APIKey) != "") != (strings.TrimSpace(newCfg.Jellyfin.APIKey) != "") {
		changed = append(changed, "jellyfin")
		attrs = append(attrs,
			logx.String("jellyfin.base_url", strings.TrimSpace(newCfg.Jellyfin.BaseURL)),
			logx.Bool("jellyfin.api_key_set", strings.TrimSpace(newCfg.Jellyfin.APIKey) != ""),
		)
	}

	// Telegram (never log token)
	if (strings.TrimSpace(oldCfg.Telegram.Token) != "") != (strings.TrimSpace(newCfg.Telegram.Token) != "") ||
		strings.TrimSpace(oldCfg.Telegram.GroupLog) != strings.TrimSpace(newCfg.Telegram.GroupLog) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(newCfg.Telegram.GroupLog) != ""),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Webhook != newCfg.Webhook {
		changed = append(changed, "webhook")
		attrs = append(attrs,
			logx.Bool("webhook.enabled", newCfg.Webhook.Enabled),
			logx.String("webhook.addr", strings.TrimSpace(newCfg.Webhook.Addr)),
			logx.Bool("webhook.token_set", strings.TrimSpace(newCfg.Webhook.Token) != ""),
		)
	}

	if oldCfg.Poller != newCfg.Poller {
		changed = append(changed, "poller")
		attrs = append(attrs,
			logx.Bool("poller.enabled", newCfg.Poller.Enabled),
			logx.String("poller.schedule", strings.TrimSpace(newCfg.Poller.Schedule)),
			logx.Int("poller.limit", newCfg.Poller.Limit),
		)
	}

	if oldCfg.Socket != newCfg.Socket {
		changed = append(changed, "socket")
		attrs = append(attrs,
			logx.Bool("socket.enabled", newCfg.Socket.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Engine, newCfg.Engine) {
		changed = append(changed, "engine")
		attrs = append(attrs,
			logx.String("engine.window", strings.TrimSpace(newCfg.Engine.Window)),
			logx.String("engine.dedup_retention", strings.TrimSpace(newCfg.Engine.DedupRetention)),
			logx.String("engine.sent_retention", strings.TrimSpace(newCfg.Engine.SentRetention)),
		)
	}

	if oldCfg.Libraries != newCfg.Libraries {
		changed = append(changed, "libraries")
		attrs = append(attrs,
			logx.String("libraries.refresh_ttl", strings.TrimSpace(newCfg.Libraries.RefreshTTL)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Routing, newCfg.Routing) {
		changed = append(changed, "routing")
		attrs = append(attrs,
			logx.Bool("routing.default_set", strings.TrimSpace(newCfg.Routing.Default) != ""),
			logx.Int("routing.mapping_count", len(newCfg.Routing.Mapping)),
		)
	}

	// Notifier: nil means runtime defaults, compare against them so an
	// explicit section matching the defaults doesn't show as a change.
	defN := &NotifierConfig{
		Enabled:         true,
		Workers:         2,
		QueueSize:       256,
		RatePerSec:      3,
		RetryBase:       "500ms",
		RetryMaxDelay:   "10s",
		DedupMaxEntries: 2000,
	}
	oldN := oldCfg.Notifier
	newN := newCfg.Notifier
	if oldN == nil {
		oldN = defN
	}
	if newN == nil {
		newN = defN
	}
	if !reflect.DeepEqual(*oldN, *newN) {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newN.Enabled),
			logx.Int("notifier.workers", newN.Workers),
			logx.Int("notifier.queue_size", newN.QueueSize),
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.Bool("notifier.persist_dedup", newN.PersistDedup),
		)
	}

	// Storage: nil means disabled.
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if oldCfg.Storage != nil {
		oDriver = strings.TrimSpace(oldCfg.Storage.Driver)
		oBusy = strings.TrimSpace(oldCfg.Storage.BusyTimeout)
		oPathSet = strings.TrimSpace(oldCfg.Storage.Path) != ""
	}
	if newCfg.Storage != nil {
		nDriver = strings.TrimSpace(newCfg.Storage.Driver)
		nBusy = strings.TrimSpace(newCfg.Storage.BusyTimeout)
		nPathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
