// Package web serves the JSON api of the permission service.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/pmhub/pmhub/internal/config"
	accesslog "github.com/pmhub/pmhub/internal/logger/adapter/fiber"
	"github.com/pmhub/pmhub/internal/web/handler"
	"github.com/pmhub/pmhub/internal/web/handler/access"
	"github.com/pmhub/pmhub/internal/web/handler/admin/cache"
	"github.com/pmhub/pmhub/internal/web/handler/admin/group"
	"github.com/pmhub/pmhub/internal/web/handler/admin/permissions"
	"github.com/pmhub/pmhub/internal/web/handler/admin/role"
	"github.com/pmhub/pmhub/internal/web/handler/admin/server/configuration"
	"github.com/pmhub/pmhub/internal/web/handler/admin/user"
	"github.com/pmhub/pmhub/internal/web/handler/dashboard"
	"github.com/pmhub/pmhub/internal/web/handler/login"
	"github.com/pmhub/pmhub/internal/web/handler/logout"
	authmiddleware "github.com/pmhub/pmhub/internal/web/middleware/auth"
)

const (
	// CheckAlivePath answers load balancer health checks.
	CheckAlivePath = "/checkalive"
	// MetricsPath serves prometheus metrics.
	MetricsPath = "/metrics"
)

// ErrNilDeps is returned by New when a dependency is missing.
var ErrNilDeps = errors.New(handler.ErrNilDepsFatalLogMsg)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
}

// Start starts the web service on the given address and blocks until it stops.
func (s *Service) Start(addr string) error {
	doneFiber := make(chan error, 1)

	go func() {
		err := s.App.Listen(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("fiber listen error")
		}

		doneFiber <- err
	}()

	return <-doneFiber
}

// WaitShutdown waits for SIGINT or SIGTERM and shuts the server down gracefully.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	s.Shutdown()
}

// Shutdown fails the health check for Webserver.ShutDownTime seconds, then stops the server.
func (s *Service) Shutdown() {
	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(config.Seconds(s.cfg.Webserver.ShutDownTime))
	}

	log.Info().Msg("stopping http server ...")

	if err := s.App.Shutdown(); err != nil {
		log.Error().Err(err).Msg("")
	}

	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates the web service and registers every route.
func New(deps *handler.Deps) (*Service, error) {
	if !deps.Valid() {
		return nil, ErrNilDeps
	}

	cfg := deps.Cfg

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
		},
	)

	service := &Service{
		cfg:          cfg,
		App:          app,
		fastShutDown: cfg.DevMode,
	}
	service.alive.Store(true)

	app.Use(accesslog.New(accesslog.Config{Config: cfg.Log, CheckAliveURI: CheckAlivePath}))

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New(recover.Config{EnableStackTrace: cfg.DevMode}))
	}

	app.Get(CheckAlivePath, service.checkAlive)
	app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))

	app.Use(authmiddleware.New(deps.Sessions))

	handlers := []handler.Service{
		&login.Handler,
		&logout.Handler,
		&permissions.Handler,
		&role.Handler,
		&user.Handler,
		&group.Handler,
		&access.Handler,
		&cache.Handler,
		&dashboard.Handler,
		&configuration.Handler,
	}

	for _, h := range handlers {
		if err := h.Init(app, deps); err != nil {
			return nil, err //nolint:wrapcheck
		}
	}

	return service, nil
}

func (s *Service) checkAlive(c *fiber.Ctx) error {
	if !s.alive.Load() {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}

	return c.SendString("OK")
}
