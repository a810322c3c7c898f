package app

import (
	"context"
	"time"

	"pkt.systems/pslog"
)

const (
	defaultHeartbeat = time.Minute
	maxBackoff       = 30 * time.Second
)

// beatFunc performs one heartbeat and reports whether it succeeded.
type beatFunc func(ctx context.Context) bool

// StartPoller launches a background goroutine that refreshes the state
// fingerprints while the session is active. It returns immediately and stops
// when ctx is cancelled.
func StartPoller(ctx context.Context, beat beatFunc, active func() bool, interval time.Duration, log pslog.Logger) {
	if interval <= 0 {
		interval = defaultHeartbeat
	}
	go func() {
		timer := time.NewTimer(interval)
		defer timer.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			next := interval
			if active() {
				if beat(ctx) {
					failures = 0
				} else {
					failures++
					next = calculateBackoff(failures, interval)
					log.Debug("heartbeat failed", "failures", failures, "retry_in", next)
				}
			}
			timer.Reset(next)
		}
	}()
}

// calculateBackoff doubles base per consecutive failure, capped at maxBackoff.
// A base above the cap is left alone so a slow heartbeat never speeds up.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			if base > maxBackoff {
				return base
			}
			return maxBackoff
		}
	}
	return d
}
