// Package dashboard provides an overview of the permission catalogue and cache health.
package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/permcache"
	"github.com/pmhub/pmhub/internal/permission"
	"github.com/pmhub/pmhub/internal/web/handler"
)

const (
	// Path is the path to the dashboard endpoint.
	Path = handler.APIPath + "/dashboard"

	defaultTimeout = 10 * time.Second
)

// Overview is the dashboard payload.
type Overview struct {
	Permissions permission.Stats `json:"permissions"`
	Roles       int              `json:"roles"`
	ActiveRoles int              `json:"active_roles"`
	Cache       permcache.Stats  `json:"cache"`
}

// Service is the dashboard handler service.
type Service struct {
	handler.Service
	deps *handler.Deps
}

// Handler is the dashboard handler.
var Handler = Service{}

// Init initializes the dashboard handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return errors.New(handler.ErrNilDepsFatalLogMsg)
	}

	s.deps = deps

	app.Get(Path, auth.RequireAllPermissions(deps.Guard,
		permission.Check{ResourceType: auth.ResourcePermission, ActionType: auth.ActionRead},
		permission.Check{ResourceType: auth.ResourceCache, ActionType: auth.ActionRead},
	), s.Get)

	return nil
}

// Get collects catalogue statistics and role counts concurrently.
func (s *Service) Get(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), defaultTimeout)
	defer cancel()

	var (
		out   Overview
		roles []permission.RoleRecord
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		out.Permissions, err = s.deps.Service.Stats(gctx)

		return err
	})

	g.Go(func() error {
		var err error
		roles, err = s.deps.Service.ListRoles(gctx)

		return err
	})

	if err := g.Wait(); err != nil {
		return handler.Error(c, err)
	}

	out.Roles = len(roles)
	for _, r := range roles {
		if r.IsActive {
			out.ActiveRoles++
		}
	}

	out.Cache = s.deps.Cache.Stats()

	return c.JSON(out)
}
