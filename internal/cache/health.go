package cache

import (
	"context"
	"time"
)

// Run drives the background work until ctx is done: the periodic health check,
// local expiry purging and, with Broadcast set, the invalidation subscriber.
func (a *Adapter) Run(ctx context.Context) {
	if a.remote != nil && a.opts.Broadcast {
		go a.subscribe(ctx)
	}

	ticker := time.NewTicker(a.opts.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.remote != nil {
				a.checkHealth(ctx)
			}

			a.local.Purge()
			recordLocalEntries(a.local.Len())
		}
	}
}

// checkHealth pings redis and flips availability. On recovery the invalidations
// queued during the outage are replayed before reads use redis again.
func (a *Adapter) checkHealth(ctx context.Context) {
	err := a.remote.Ping(ctx)
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		if a.available.Swap(false) {
			a.log.Warn().Err(err).Msg("external cache tier unavailable, serving from local tier")
		}

		recordAvailable(false)

		return
	}

	if a.available.Load() {
		recordAvailable(true)

		return
	}

	if err := a.replayPending(ctx); err != nil {
		a.log.Warn().Err(err).Msg("external cache tier answers but queued invalidations failed, staying degraded")
		recordError("replay")

		return
	}

	a.available.Store(true)
	recordAvailable(true)
	a.log.Info().Msg("external cache tier available")
}

func (a *Adapter) replayPending(ctx context.Context) error {
	patterns, overflow := a.takePending()
	if overflow {
		patterns = []string{a.opts.FlushPattern}
	}

	for i, p := range patterns {
		if _, err := a.remote.DeletePattern(ctx, p); err != nil {
			for _, left := range patterns[i:] {
				a.queue(left)
			}

			return err
		}
	}

	if len(patterns) > 0 {
		a.log.Info().Int("patterns", len(patterns)).Bool("overflow", overflow).Msg("replayed queued invalidations")
		a.publish(ctx, invalidation{Patterns: patterns})
	}

	return nil
}
