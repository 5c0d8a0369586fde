// Package permissions provides the permission catalogue endpoints.
package permissions

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/permission"
	"github.com/pmhub/pmhub/internal/web/handler"
)

const (
	// Path is the base path for permission management.
	Path = handler.APIPath + "/permissions"

	// RouteActive lists every active permission.
	RouteActive = "/active"
	// RouteStats reports catalogue statistics.
	RouteStats = "/stats"
	// RouteID addresses one permission.
	RouteID = "/:" + handler.ParamID
)

// Service provides CRUD operations for permissions.
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
	g := deps.Guard

	app.Route(Path, func(r fiber.Router) {
		r.Get(handler.RouterRootPath, auth.RequirePermission(g, auth.ResourcePermission, auth.ActionRead), s.List)
		r.Post(handler.RouterRootPath, auth.RequirePermission(g, auth.ResourcePermission, auth.ActionCreate), s.Create)
		r.Get(RouteActive, auth.RequirePermission(g, auth.ResourcePermission, auth.ActionRead), s.Active)
		r.Get(RouteStats, auth.RequirePermission(g, auth.ResourcePermission, auth.ActionRead), s.Stats)
		r.Get(RouteID, auth.RequirePermission(g, auth.ResourcePermission, auth.ActionRead), s.Get)
		r.Patch(RouteID, auth.RequirePermission(g, auth.ResourcePermission, auth.ActionUpdate), s.Update)
		r.Delete(RouteID, auth.RequirePermission(g, auth.ResourcePermission, auth.ActionDelete), s.Delete)
	})

	return nil
}

// List returns a filtered page of permissions.
func (s *Service) List(c *fiber.Ctx) error {
	var f permission.Filter
	if err := c.QueryParser(&f); err != nil {
		return handler.Error(c, permission.NewValidationError("invalid filter: "+err.Error()))
	}

	page, err := s.deps.Cache.ListPermissions(c.UserContext(), f)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(page)
}

// Active returns every active permission.
func (s *Service) Active(c *fiber.Ctx) error {
	recs, err := s.deps.Cache.ActivePermissions(c.UserContext())
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(recs)
}

// Stats returns catalogue statistics.
func (s *Service) Stats(c *fiber.Ctx) error {
	stats, err := s.deps.Service.Stats(c.UserContext())
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(stats)
}

// Get returns one permission.
func (s *Service) Get(c *fiber.Ctx) error {
	id, err := handler.ID(c)
	if err != nil {
		return handler.Error(c, err)
	}

	rec, err := s.deps.Cache.GetPermission(c.UserContext(), id)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(rec)
}

// Create adds a permission.
func (s *Service) Create(c *fiber.Ctx) error {
	var in permission.CreatePermissionInput
	if err := handler.Bind(c, &in); err != nil {
		return handler.Error(c, err)
	}

	rec, err := s.deps.Service.CreatePermission(c.UserContext(), in)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rec)
}

// Update changes the fields present in the body.
func (s *Service) Update(c *fiber.Ctx) error {
	id, err := handler.ID(c)
	if err != nil {
		return handler.Error(c, err)
	}

	var in permission.UpdatePermissionInput
	if err = handler.Bind(c, &in); err != nil {
		return handler.Error(c, err)
	}

	rec, err := s.deps.Service.UpdatePermission(c.UserContext(), id, in)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(rec)
}

// Delete removes an ungranted permission.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := handler.ID(c)
	if err != nil {
		return handler.Error(c, err)
	}

	if err = s.deps.Service.DeletePermission(c.UserContext(), id); err != nil {
		return handler.Error(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
