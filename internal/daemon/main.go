// Package daemon wires the permission service together and runs it.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/cache"
	"github.com/pmhub/pmhub/internal/config"
	"github.com/pmhub/pmhub/internal/db"
	redislog "github.com/pmhub/pmhub/internal/logger/adapter/redis"
	"github.com/pmhub/pmhub/internal/permcache"
	"github.com/pmhub/pmhub/internal/permission"
	"github.com/pmhub/pmhub/internal/web"
	"github.com/pmhub/pmhub/internal/web/handler"
	"github.com/pmhub/pmhub/internal/web/session"
)

// Options change how New builds the daemon.
type Options struct {
	// NoRedis runs on the process-local cache tier only, whatever the config says.
	NoRedis bool
}

// Daemon represents the main application daemon.
type Daemon struct {
	cfg      *config.Config
	db       *gorm.DB
	cache    *cache.Adapter
	manager  *permcache.Manager
	service  *permission.Service
	sessions *session.Store
	web      *web.Service
	cron     *cron.Cron

	ctx      context.Context //nolint:containedctx
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New opens the database, connects the cache tiers and builds the web service.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, config.ErrNilConfig
	}

	gdb, err := db.Open(&cfg.DB, cfg.DevMode)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if err = cache.SetupMetrics(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	if err = permcache.SetupMetrics(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("permission cache metrics: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{cfg: cfg, db: gdb, ctx: ctx, cancel: cancel}

	var remote *cache.Remote

	if cfg.Cache.Enabled && !opts.NoRedis {
		redislog.Install(zerolog.DebugLevel)

		remote = cache.NewRemote(cache.NewRedisClient(&cfg.Cache), config.Seconds(cfg.Cache.ReadTimeout+cfg.Cache.WriteTimeout))
	} else {
		log.Info().Msg("external cache tier disabled, running on the local tier only")
	}

	d.cache = cache.New(ctx, remote, cache.OptionsFromConfig(&cfg.Cache))

	store := permission.NewStore(gdb)
	d.manager = permcache.New(d.cache, store, permcache.OptionsFromConfig(cfg))
	d.service = permission.NewService(store, d.manager)
	d.sessions = session.New(session.NewStorage(&cfg.DB))

	d.web, err = web.New(&handler.Deps{
		Cfg:      cfg,
		Service:  d.service,
		Cache:    d.manager,
		Guard:    auth.NewGuard(d.manager, cfg.Auth.SuperRoleCode),
		Users:    auth.NewLocalProvider(gdb),
		Sessions: d.sessions,
	})
	if err != nil {
		d.Stop()

		return nil, err //nolint:wrapcheck
	}

	if d.cron, err = newScheduler(ctx, &cfg.Cache, d.manager, d.service); err != nil {
		d.Stop()

		return nil, err
	}

	return d, nil
}

// Start seeds the database, starts the background work and serves until shutdown.
func (d *Daemon) Start() error {
	if _, err := Seed(d.ctx, d.service, &d.cfg.Auth); err != nil {
		return err
	}

	go d.cache.Run(d.ctx)

	if d.cron != nil {
		d.cron.Start()
	}

	if d.cfg.Cache.WarmupEnabled {
		go d.warmUpLater(config.Seconds(d.cfg.Cache.WarmupDelay))
	}

	go d.web.WaitShutdown()

	err := d.web.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))

	d.Stop()

	return err //nolint:wrapcheck
}

// Manager returns the permission cache manager.
func (d *Daemon) Manager() *permcache.Manager {
	return d.manager
}

// Service returns the permission service.
func (d *Daemon) Service() *permission.Service {
	return d.service
}

// Stop releases every resource. It is safe to call more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		d.cancel()

		if d.cron != nil {
			<-d.cron.Stop().Done()
		}

		if d.cache != nil {
			if err := d.cache.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close cache")
			}
		}

		if d.sessions != nil {
			if err := d.sessions.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close session storage")
			}
		}

		if sqlDB, err := d.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
}

func (d *Daemon) warmUpLater(delay time.Duration) {
	select {
	case <-d.ctx.Done():
		return
	case <-time.After(delay):
	}

	n, err := d.manager.WarmUp(d.ctx)
	if err != nil {
		log.Error().Err(err).Msg("cache warm-up failed")

		return
	}

	log.Info().Int("users", n).Msg("permission cache warmed")
}
