package daemon

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/pmhub/pmhub/internal/config"
	cronlog "github.com/pmhub/pmhub/internal/logger/adapter/cron"
)

// refresher is what the scheduled jobs call.
type refresher interface {
	Refresh(ctx context.Context) (int, error)
}

type purger interface {
	PurgeExpiredCache(ctx context.Context) (int64, error)
}

// newScheduler registers the refresh and purge jobs. An empty spec disables a job.
// It returns nil when no job is configured.
func newScheduler(ctx context.Context, cfg *config.Cache, r refresher, p purger) (*cron.Cron, error) {
	if cfg.RefreshCron == "" && cfg.PurgeCron == "" {
		return nil, nil //nolint:nilnil
	}

	logger := cronlog.New()
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))

	if cfg.RefreshCron != "" {
		if _, err := c.AddFunc(cfg.RefreshCron, func() {
			n, err := r.Refresh(ctx)
			if err != nil {
				log.Error().Err(err).Msg("scheduled cache refresh failed")

				return
			}

			log.Info().Int("users", n).Msg("permission cache refreshed")
		}); err != nil {
			return nil, fmt.Errorf("invalid cache.refreshCron %q: %w", cfg.RefreshCron, err)
		}
	}

	if cfg.PurgeCron != "" {
		if _, err := c.AddFunc(cfg.PurgeCron, func() {
			n, err := p.PurgeExpiredCache(ctx)
			if err != nil {
				log.Error().Err(err).Msg("scheduled cache purge failed")

				return
			}

			log.Debug().Int64("rows", n).Msg("expired persisted cache rows purged")
		}); err != nil {
			return nil, fmt.Errorf("invalid cache.purgeCron %q: %w", cfg.PurgeCron, err)
		}
	}

	return c, nil
}
