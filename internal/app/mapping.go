package app

import (
	"fmt"
	"strings"
	"time"

	"shelfwatch/internal/config"
	"shelfwatch/internal/engine"
	"shelfwatch/internal/jellyfin"
	"shelfwatch/internal/notify"
	"shelfwatch/internal/router"
	"shelfwatch/internal/storage"
)

func parseDurationField(path, raw string) (time.Duration, error) {
	return config.ParseDurationField(path, raw)
}

func parseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	return config.ParseDurationOrDefault(path, raw, def)
}

func mapJellyfinConfig(cfg *config.Config) (jellyfin.Config, error) {
	timeout, err := parseDurationOrDefault("jellyfin.timeout", cfg.Jellyfin.Timeout, 8*time.Second)
	if err != nil {
		return jellyfin.Config{}, err
	}
	return jellyfin.Config{
		BaseURL: cfg.Jellyfin.BaseURL,
		APIKey:  cfg.Jellyfin.APIKey,
		UserID:  cfg.Jellyfin.UserID,
		Timeout: timeout,
	}, nil
}

func mapEngineConfig(cfg *config.Config) (engine.Config, error) {
	window, err := parseDurationOrDefault("engine.window", cfg.Engine.Window, 60*time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	dedup, err := parseDurationOrDefault("engine.dedup_retention", cfg.Engine.DedupRetention, 24*time.Hour)
	if err != nil {
		return engine.Config{}, err
	}
	sent, err := parseDurationOrDefault("engine.sent_retention", cfg.Engine.SentRetention, 24*time.Hour)
	if err != nil {
		return engine.Config{}, err
	}

	boolOr := func(p *bool, def bool) bool {
		if p == nil {
			return def
		}
		return *p
	}
	return engine.Config{
		Window:         window,
		DedupRetention: dedup,
		SentRetention:  sent,
		Toggles: engine.Toggles{
			Movies:   boolOr(cfg.Engine.Notify.Movies, true),
			Series:   boolOr(cfg.Engine.Notify.Series, true),
			Seasons:  boolOr(cfg.Engine.Notify.Seasons, true),
			Episodes: boolOr(cfg.Engine.Notify.Episodes, true),
		},
	}, nil
}

func mapRouterConfig(cfg *config.Config) router.Config {
	return router.Config{
		Default: cfg.Routing.Default,
		Mapping: cfg.Routing.Mapping,
	}
}

func mapNotifierConfig(cfg *config.Config) (notify.Config, error) {
	// Section omitted: enabled with runtime defaults.
	n := cfg.Notifier
	if n == nil {
		n = &config.NotifierConfig{Enabled: true}
	}
	out := notify.Config{
		Enabled:         n.Enabled,
		Workers:         n.Workers,
		QueueSize:       n.QueueSize,
		RatePerSec:      n.RatePerSec,
		RetryMax:        n.RetryMax,
		DedupMaxEntries: n.DedupMaxEntries,
		PersistDedup:    n.PersistDedup,
	}
	var err error
	if out.RetryBase, err = parseDurationField("notifier.retry_base", n.RetryBase); err != nil {
		return notify.Config{}, err
	}
	if out.RetryMaxDelay, err = parseDurationField("notifier.retry_max_delay", n.RetryMaxDelay); err != nil {
		return notify.Config{}, err
	}
	if out.DedupWindow, err = parseDurationField("notifier.dedup_window", n.DedupWindow); err != nil {
		return notify.Config{}, err
	}
	return out, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := parseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
