// Package access answers permission questions for the caller or, with permission:manage, for other users.
package access

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/permission"
	"github.com/pmhub/pmhub/internal/web/handler"
)

const (
	// Path is the base path of the access endpoints.
	Path = handler.APIPath + "/access"

	// RouteMe describes the caller.
	RouteMe = "/me"
	// RouteCheck answers one check.
	RouteCheck = "/check"
	// RouteBatch answers several checks.
	RouteBatch = "/batch"
)

type checkQuery struct {
	ResourceType string `query:"resource_type"`
	ActionType   string `query:"action_type"`
	ResourceID   string `query:"resource_id"`
	UserID       uint64 `query:"user_id"`
}

type batchBody struct {
	UserID uint64             `json:"user_id"`
	Checks []permission.Check `json:"checks"`
}

// Me is the caller's identity with roles and permissions.
type Me struct {
	UserID      uint64              `json:"user_id"`
	Roles       []string            `json:"roles"`
	Permissions []permission.Record `json:"permissions"`
	Super       bool                `json:"super"`
}

// Service provides the access endpoints.
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

	app.Route(Path, func(r fiber.Router) {
		r.Get(RouteMe, s.Me)
		r.Get(RouteCheck, s.Check)
		r.Post(RouteBatch, s.Batch)
	})

	return nil
}

// Me returns the caller's roles and effective permissions.
func (s *Service) Me(c *fiber.Ctx) error {
	ctx := c.UserContext()
	uid := auth.UserID(c)

	if uid == 0 {
		return handler.Error(c, auth.ErrUnauthenticated)
	}

	roles, err := s.deps.Cache.GetUserRoles(ctx, uid)
	if err != nil {
		return handler.Error(c, err)
	}

	perms, err := s.deps.Cache.GetUserPermissions(ctx, uid)
	if err != nil {
		return handler.Error(c, err)
	}

	super, err := s.deps.Guard.IsSuper(ctx, uid)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(Me{UserID: uid, Roles: roles, Permissions: perms, Super: super})
}

// Check answers whether a user holds one permission. A denial is a normal answer, not an error.
func (s *Service) Check(c *fiber.Ctx) error {
	ctx := c.UserContext()
	caller := auth.UserID(c)

	var q checkQuery
	if err := c.QueryParser(&q); err != nil {
		return handler.Error(c, permission.NewValidationError("invalid query: "+err.Error()))
	}

	if err := permission.Validate(&permission.Check{ResourceType: q.ResourceType, ActionType: q.ActionType}); err != nil {
		return handler.Error(c, err)
	}

	target := q.UserID
	if target == 0 {
		target = caller
	}

	if target != caller {
		m := auth.PermissionManage
		if err := s.deps.Guard.Require(ctx, caller, m.ResourceType, m.ActionType, ""); err != nil {
			return handler.Error(c, err)
		}
	}

	err := s.deps.Guard.Require(ctx, target, q.ResourceType, q.ActionType, q.ResourceID)

	switch {
	case err == nil:
	case errors.Is(err, auth.ErrForbidden):
	default:
		return handler.Error(c, err)
	}

	return c.JSON(fiber.Map{
		"user_id":       target,
		"resource_type": q.ResourceType,
		"action_type":   q.ActionType,
		"allowed":       err == nil,
	})
}

// Batch answers several checks keyed "resource_type:action_type".
func (s *Service) Batch(c *fiber.Ctx) error {
	var body batchBody
	if err := handler.Bind(c, &body); err != nil {
		return handler.Error(c, err)
	}

	res, err := s.deps.Guard.Batch(c.UserContext(), auth.UserID(c), body.UserID, body.Checks)
	if err != nil {
		return handler.Error(c, err)
	}

	target := body.UserID
	if target == 0 {
		target = auth.UserID(c)
	}

	return c.JSON(fiber.Map{"user_id": target, "results": res})
}
