// Package app wires the daemon together: config, logging, the catalog
// client, the coalescing engine, the producers and the delivery
// pipeline, plus hot reload of the tunable parts.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shelfwatch/internal/assemble"
	"shelfwatch/internal/config"
	"shelfwatch/internal/engine"
	"shelfwatch/internal/eventbus"
	"shelfwatch/internal/jellyfin"
	"shelfwatch/internal/library"
	"shelfwatch/internal/metrics"
	"shelfwatch/internal/notify"
	"shelfwatch/internal/producer/poller"
	"shelfwatch/internal/producer/socket"
	"shelfwatch/internal/producer/webhook"
	"shelfwatch/internal/router"
	"shelfwatch/internal/runtime/supervisor"
	"shelfwatch/internal/storage"
	kit "shelfwatch/internal/transport"
	telegram "shelfwatch/internal/transport/telegram"
	logx "shelfwatch/pkg/logx"
)

// StopReason records why the app is shutting down, for the final log line.
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter kit.Adapter
	catalog *jellyfin.Client

	provider *library.Provider
	resolver *library.Resolver
	routes   *router.Router
	eng      *engine.Engine
	asm      *assemble.Assembler
	notif    *notify.Service

	web  *webhook.Server
	poll *poller.Poller
	sock *socket.Listener

	pollerEnabled bool
	socketEnabled bool
	webEnabled    bool
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token}, bootLog)
	if err != nil {
		return nil, err
	}

	// logx.New applies immediately; bootstrap with telegram logging off,
	// set the target, then apply the real config so the first Apply never
	// warns about a missing chat id.
	baseLogCfg := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    false,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	applyLogTarget(logSvc, cfg)
	finalLogCfg := baseLogCfg
	finalLogCfg.Telegram.Enabled = cfg.Logging.Telegram.Enabled
	logSvc.Apply(finalLogCfg)

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	jfCfg, err := mapJellyfinConfig(cfg)
	if err != nil {
		return nil, err
	}
	catalog, err := jellyfin.New(jfCfg, log.With(logx.String("comp", "jellyfin")))
	if err != nil {
		return nil, err
	}

	refreshTTL, err := parseDurationOrDefault("libraries.refresh_ttl", cfg.Libraries.RefreshTTL, 5*time.Minute)
	if err != nil {
		return nil, err
	}
	provider := library.NewProvider(catalog, refreshTTL, log.With(logx.String("comp", "libraries")))
	resolver := library.NewResolver(catalog, provider, log.With(logx.String("comp", "resolver")))

	routes, err := router.New(mapRouterConfig(cfg))
	if err != nil {
		return nil, err
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notify.New(ncfg, ad, log.With(logx.String("comp", "notify")), bus, store)

	asm := assemble.New(assemble.NewCatalogEnricher(catalog), log.With(logx.String("comp", "assemble")))

	a := &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		adapter:  ad,
		catalog:  catalog,
		provider: provider,
		resolver: resolver,
		routes:   routes,
		notif:    notif,
		asm:      asm,
	}

	engCfg, err := mapEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.eng = engine.New(engCfg, resolver, routes, a.emit, bus, log.With(logx.String("comp", "engine")))

	a.webEnabled = cfg.Webhook.Enabled
	a.web = webhook.NewServer(webhook.Config{
		Addr:  cfg.Webhook.Addr,
		Token: cfg.Webhook.Token,
	}, a.eng, log.With(logx.String("comp", "webhook")))

	a.pollerEnabled = cfg.Poller.Enabled
	pollTimeout, err := parseDurationOrDefault("poller.timeout", cfg.Poller.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	a.poll = poller.New(poller.Config{
		Schedule: cfg.Poller.Schedule,
		Limit:    cfg.Poller.Limit,
		Timeout:  pollTimeout,
	}, catalog, a.eng, log.With(logx.String("comp", "poller")))

	a.socketEnabled = cfg.Socket.Enabled
	keepAlive, err := parseDurationOrDefault("socket.keep_alive", cfg.Socket.KeepAlive, 30*time.Second)
	if err != nil {
		return nil, err
	}
	a.sock = socket.New(socket.Config{KeepAlive: keepAlive}, catalog, a.eng, log.With(logx.String("comp", "socket")))

	return a, nil
}

// emit carries a fired window into the delivery pipeline. It runs on the
// coordinator's loop goroutine, after the coordinator lock is released;
// the enrichment fetch is the only blocking part and is bounded.
func (a *App) emit(co engine.Coalesced) {
	ctx := context.Background()
	if a.sup != nil {
		ctx = a.sup.Context()
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	n := a.asm.Assemble(ctx, co)
	if err := a.notif.Deliver(ctx, n); err != nil {
		a.log.Warn("delivery enqueue failed", logx.String("item", co.Event.ItemID), logx.Err(err))
	}
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}

	a.sup.Go("engine", a.eng.Run)
	a.sup.Go("metrics", func(c context.Context) error {
		return metrics.Collect(c, a.bus, a.eng.Pending)
	})

	if a.webEnabled {
		a.sup.Go("webhook", a.web.Run)
	}
	if a.pollerEnabled {
		a.sup.Go("poller", a.poll.Run)
		// Catch-up pass so items added while the daemon was down are not
		// missed until the first scheduled tick.
		a.sup.Go0("poller.catchup", func(c context.Context) { a.poll.Poll(c) })
	}
	if a.socketEnabled {
		a.sup.GoRestart("socket", a.sock.Run,
			supervisor.WithRestartBackoff(time.Second, time.Minute))
	}

	a.runConfigReload()
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started")
	return nil
}

func (a *App) runConfigReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				sections, attrs := config.SummarizeConfigChange(lastApplied, newCfg)
				lastApplied = newCfg
				if len(sections) == 0 {
					a.log.Debug("config reload received, but no effective changes detected")
					continue
				}

				a.applyReload(newCfg, sections)

				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Info("config reloaded", fields...)
			}
		}
	})
}

// applyReload pushes hot-reloadable sections into the running
// components. Sections that need a restart are called out instead.
func (a *App) applyReload(cfg *config.Config, sections []string) {
	for _, s := range sections {
		switch s {
		case "jellyfin", "storage", "telegram", "webhook", "poller", "socket":
			a.log.Warn("config section changed; restart required for changes to take effect",
				logx.String("section", s))
		}
	}

	applyLogTarget(a.logs, cfg)
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	})

	if engCfg, err := mapEngineConfig(cfg); err != nil {
		a.log.Warn("invalid engine config; keeping previous", logx.Err(err))
	} else {
		a.eng.Apply(engCfg)
	}

	if err := a.routes.Apply(mapRouterConfig(cfg)); err != nil {
		a.log.Warn("invalid routing config; keeping previous", logx.Err(err))
	}

	prevNotifEnabled := a.notif.Enabled()
	if ncfg, err := mapNotifierConfig(cfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
		if prevNotifEnabled && !ncfg.Enabled {
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(a.sup.Context(), 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		} else if !prevNotifEnabled && ncfg.Enabled {
			a.log.Info("notifier enabled via config")
			a.notif.Start(a.sup.Context())
		}
	}

	// Library snapshot may be stale relative to a reconfigured server.
	a.provider.Invalidate()
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context so producers and loops unwind immediately.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

func applyLogTarget(logs *logx.Service, cfg *config.Config) {
	raw := strings.TrimSpace(cfg.Telegram.GroupLog)
	if raw == "" {
		logs.SetTelegramTarget(0, 0)
		return
	}
	t, err := router.ParseTarget(raw)
	if err != nil || t.IsZero() {
		return
	}
	threadID := t.ThreadID
	if threadID == 0 {
		threadID = cfg.Logging.Telegram.ThreadID
	}
	logs.SetTelegramTarget(t.ChatID, threadID)
}

// validate rejects configs that would put the daemon in a broken state
// on hot reload. Construction-time errors (bad base URL, missing token)
// are caught by NewApp instead.
func validate(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Jellyfin.BaseURL) == "" {
		return fmt.Errorf("jellyfin.base_url is required")
	}
	if strings.TrimSpace(cfg.Jellyfin.APIKey) == "" {
		return fmt.Errorf("jellyfin.api_key is required")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := parseDurationField("jellyfin.timeout", cfg.Jellyfin.Timeout); err != nil {
		return err
	}
	if _, err := mapEngineConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := parseDurationField("libraries.refresh_ttl", cfg.Libraries.RefreshTTL); err != nil {
		return err
	}
	if _, err := parseDurationField("poller.timeout", cfg.Poller.Timeout); err != nil {
		return err
	}
	if _, err := parseDurationField("socket.keep_alive", cfg.Socket.KeepAlive); err != nil {
		return err
	}
	if _, err := router.ParseTarget(cfg.Routing.Default); err != nil {
		return err
	}
	for lib, raw := range cfg.Routing.Mapping {
		if _, err := router.ParseTarget(raw); err != nil {
			return fmt.Errorf("routing.mapping[%s]: %w", lib, err)
		}
	}
	if cfg.Poller.Enabled && strings.TrimSpace(cfg.Poller.Schedule) == "" {
		return fmt.Errorf("poller.schedule is required when poller.enabled is true")
	}
	if cfg.Poller.Enabled && strings.TrimSpace(cfg.Jellyfin.UserID) == "" {
		return fmt.Errorf("jellyfin.user_id is required when poller.enabled is true")
	}
	return nil
}
