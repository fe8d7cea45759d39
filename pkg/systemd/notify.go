// Package systemd integrates the daemon with the service manager:
// readiness notification and watchdog pings. All functions are no-ops
// when not running under systemd.
package systemd

import (
	"context"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
)

// NotifyReady tells the service manager the daemon is up (Type=notify).
func NotifyReady() {
	_, _ = sd.SdNotify(false, sd.SdNotifyReady)
}

// NotifyStopping signals that shutdown has begun.
func NotifyStopping() {
	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)
}

// Watchdog pings the service-manager watchdog at half the configured
// interval until ctx ends. It returns immediately when WatchdogSec is
// not set on the unit.
func Watchdog(ctx context.Context) {
	interval, err := sd.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = sd.SdNotify(false, sd.SdNotifyWatchdog)
		}
	}
}
