// Package role provides the role and role grant endpoints.
package role

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/permission"
	"github.com/pmhub/pmhub/internal/web/handler"
)

const (
	// Path is the base path for role management.
	Path = handler.APIPath + "/roles"

	// RouteMatrix returns the role permission matrix.
	RouteMatrix = "/matrix"
	// RouteID addresses one role.
	RouteID = "/:" + handler.ParamID
	// RoutePermissions addresses the grants of one role.
	RoutePermissions = RouteID + "/permissions"
)

// grantBody is the body of grant and revoke requests; the role comes from the path.
type grantBody struct {
	PermissionIDs []uint `json:"permission_ids"`
	Reason        string `json:"reason"`
}

// Service provides role operations.
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
		r.Get(handler.RouterRootPath, auth.RequirePermission(g, auth.ResourceRole, auth.ActionRead), s.List)
		r.Post(handler.RouterRootPath, auth.RequirePermission(g, auth.ResourceRole, auth.ActionCreate), s.Create)
		r.Get(RouteMatrix, auth.RequireAllPermissions(g,
			permission.Check{ResourceType: auth.ResourceRole, ActionType: auth.ActionRead},
			permission.Check{ResourceType: auth.ResourcePermission, ActionType: auth.ActionRead},
		), s.Matrix)
		r.Get(RouteID, auth.RequirePermission(g, auth.ResourceRole, auth.ActionRead), s.Get)
		r.Patch(RouteID, auth.RequireResourcePermission(g, auth.ResourceRole, auth.ActionUpdate, handler.ParamID), s.Update)
		r.Delete(RouteID, auth.RequireResourcePermission(g, auth.ResourceRole, auth.ActionDelete, handler.ParamID), s.Delete)
		r.Get(RoutePermissions, auth.RequirePermission(g, auth.ResourceRole, auth.ActionRead), s.Permissions)
		r.Post(RoutePermissions, auth.RequirePermission(g, auth.ResourceRole, auth.ActionManage), s.Grant)
		r.Delete(RoutePermissions, auth.RequirePermission(g, auth.ResourceRole, auth.ActionManage), s.Revoke)
	})

	return nil
}

// List returns every role.
func (s *Service) List(c *fiber.Ctx) error {
	roles, err := s.deps.Service.ListRoles(c.UserContext())
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(roles)
}

// Matrix returns every role with the codes of its granted permissions.
func (s *Service) Matrix(c *fiber.Ctx) error {
	m, err := s.deps.Cache.GetPermissionMatrix(c.UserContext())
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(m)
}

// Get returns one role.
func (s *Service) Get(c *fiber.Ctx) error {
	id, err := handler.ID(c)
	if err != nil {
		return handler.Error(c, err)
	}

	role, err := s.deps.Service.GetRole(c.UserContext(), id)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(role)
}

// Create adds a role.
func (s *Service) Create(c *fiber.Ctx) error {
	var in permission.CreateRoleInput
	if err := handler.Bind(c, &in); err != nil {
		return handler.Error(c, err)
	}

	role, err := s.deps.Service.CreateRole(c.UserContext(), in)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(role)
}

// Update changes the fields present in the body.
func (s *Service) Update(c *fiber.Ctx) error {
	id, err := handler.ID(c)
	if err != nil {
		return handler.Error(c, err)
	}

	var in permission.UpdateRoleInput
	if err = handler.Bind(c, &in); err != nil {
		return handler.Error(c, err)
	}

	role, err := s.deps.Service.UpdateRole(c.UserContext(), id, in)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(role)
}

// Delete removes a role nobody holds directly.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := handler.ID(c)
	if err != nil {
		return handler.Error(c, err)
	}

	if err = s.deps.Service.DeleteRole(c.UserContext(), id); err != nil {
		return handler.Error(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Permissions returns the active permissions granted to the role.
func (s *Service) Permissions(c *fiber.Ctx) error {
	id, err := handler.ID(c)
	if err != nil {
		return handler.Error(c, err)
	}

	recs, err := s.deps.Cache.GetRolePermissions(c.UserContext(), id)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(recs)
}

// Grant assigns permissions to the role.
func (s *Service) Grant(c *fiber.Ctx) error {
	in, err := s.grantInput(c)
	if err != nil {
		return handler.Error(c, err)
	}

	res, err := s.deps.Service.AssignPermissionsToRole(c.UserContext(), in)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(res)
}

// Revoke withdraws permissions from the role.
func (s *Service) Revoke(c *fiber.Ctx) error {
	in, err := s.grantInput(c)
	if err != nil {
		return handler.Error(c, err)
	}

	n, err := s.deps.Service.RevokePermissionsFromRole(c.UserContext(), in)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(fiber.Map{"revoked": n})
}

func (s *Service) grantInput(c *fiber.Ctx) (permission.GrantInput, error) {
	id, err := handler.ID(c)
	if err != nil {
		return permission.GrantInput{}, err
	}

	var body grantBody
	if err = handler.Bind(c, &body); err != nil {
		return permission.GrantInput{}, err
	}

	return permission.GrantInput{
		RoleID:        id,
		PermissionIDs: body.PermissionIDs,
		OperatorID:    auth.UserID(c),
		Reason:        body.Reason,
	}, nil
}
