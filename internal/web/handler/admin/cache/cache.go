// Package cache provides the permission cache administration endpoints.
package cache

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/web/handler"
)

const (
	// Path is the base path of the cache endpoints.
	Path = handler.APIPath + "/cache"

	// RouteStats reports hit rate and tier state.
	RouteStats = "/stats"
	// RouteWarmup precomputes permissions of recently active users.
	RouteWarmup = "/warmup"
	// RoutePurge removes expired persisted rows.
	RoutePurge = "/purge"
	// RouteUser drops every entry of one user.
	RouteUser = "/users/:" + handler.ParamID
)

// Service provides cache administration.
type Service struct {
	handler.Service
	deps *handler.Deps
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return errors.New(handler.ErrNilDepsFatalLogMsg)
	}

	s.deps = deps
	manage := auth.RequirePermission(deps.Guard, auth.ResourceCache, auth.ActionManage)

	app.Route(Path, func(r fiber.Router) {
		r.Get(RouteStats, auth.RequirePermission(deps.Guard, auth.ResourceCache, auth.ActionRead), s.Stats)
		r.Delete(handler.RouterRootPath, manage, s.Clear)
		r.Post(RouteWarmup, manage, s.Warmup)
		r.Post(RoutePurge, manage, s.Purge)
		r.Delete(RouteUser, manage, s.InvalidateUser)
	})

	return nil
}

// Stats returns the manager and adapter statistics.
func (s *Service) Stats(c *fiber.Ctx) error {
	return c.JSON(s.deps.Cache.Stats())
}

// Clear drops every permission cache entry.
func (s *Service) Clear(c *fiber.Ctx) error {
	n := s.deps.Cache.ClearAll(c.UserContext())

	log.Info().Uint64("user", auth.UserID(c)).Int("keys", n).Msg("permission cache cleared")

	return c.JSON(fiber.Map{"cleared": n})
}

// Warmup precomputes permissions of the most recently updated active users.
func (s *Service) Warmup(c *fiber.Ctx) error {
	n, err := s.deps.Cache.WarmUp(c.UserContext())
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(fiber.Map{"warmed": n})
}

// Purge removes expired persisted cache rows.
func (s *Service) Purge(c *fiber.Ctx) error {
	n, err := s.deps.Service.PurgeExpiredCache(c.UserContext())
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(fiber.Map{"purged": n})
}

// InvalidateUser drops every cached entry of one user.
func (s *Service) InvalidateUser(c *fiber.Ctx) error {
	id, err := handler.ID64(c)
	if err != nil {
		return handler.Error(c, err)
	}

	s.deps.Cache.InvalidateUser(c.UserContext(), id)

	return c.SendStatus(fiber.StatusNoContent)
}
