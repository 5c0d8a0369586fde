// Package user provides the user endpoints: creation, role assignment and group membership.
package user

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/permission"
	"github.com/pmhub/pmhub/internal/web/handler"
)

const (
	// Path is the base path for user management.
	Path = handler.APIPath + "/users"

	// RouteRole sets the direct role of a user.
	RouteRole = "/:" + handler.ParamID + "/role"
	// RouteGroups adds a user to a group.
	RouteGroups = "/:" + handler.ParamID + "/groups"
)

type roleBody struct {
	RoleID uint `json:"role_id"`
}

type groupBody struct {
	GroupID uint `json:"group_id"`
}

// Service provides user operations.
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
		r.Post(handler.RouterRootPath, auth.RequirePermission(g, auth.ResourceUser, auth.ActionCreate), s.Create)
		r.Put(RouteRole, auth.RequirePermission(g, auth.ResourceUser, auth.ActionManage), s.AssignRole)
		r.Post(RouteGroups, auth.RequirePermission(g, auth.ResourceUser, auth.ActionManage), s.AddToGroup)
	})

	return nil
}

// Create adds an active local user.
func (s *Service) Create(c *fiber.Ctx) error {
	var in permission.CreateUserInput
	if err := handler.Bind(c, &in); err != nil {
		return handler.Error(c, err)
	}

	id, err := s.deps.Service.CreateUser(c.UserContext(), in)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "username": in.Username})
}

// AssignRole replaces the direct role of a user.
func (s *Service) AssignRole(c *fiber.Ctx) error {
	id, err := handler.ID64(c)
	if err != nil {
		return handler.Error(c, err)
	}

	var body roleBody
	if err = handler.Bind(c, &body); err != nil {
		return handler.Error(c, err)
	}

	if err = s.deps.Service.AssignRoleToUser(c.UserContext(), id, body.RoleID); err != nil {
		return handler.Error(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// AddToGroup makes the user a member of a group.
func (s *Service) AddToGroup(c *fiber.Ctx) error {
	id, err := handler.ID64(c)
	if err != nil {
		return handler.Error(c, err)
	}

	var body groupBody
	if err = handler.Bind(c, &body); err != nil {
		return handler.Error(c, err)
	}

	if err = s.deps.Service.AddUserToGroup(c.UserContext(), id, body.GroupID); err != nil {
		return handler.Error(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
