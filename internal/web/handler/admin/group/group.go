// Package group provides the group endpoints. A group mapped to a role grants that role to every member.
package group

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/permission"
	"github.com/pmhub/pmhub/internal/web/handler"
)

const (
	// Path is the base path for group management.
	Path = handler.APIPath + "/groups"

	// RouteRole maps a group to a role.
	RouteRole = "/:" + handler.ParamID + "/role"
	// RouteMembers adds members.
	RouteMembers = "/:" + handler.ParamID + "/members"
)

type roleBody struct {
	RoleID uint `json:"role_id"`
}

type memberBody struct {
	UserID uint64 `json:"user_id"`
}

// Service provides group operations.
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
	manage := auth.RequirePermission(deps.Guard, auth.ResourceUser, auth.ActionManage)

	app.Route(Path, func(r fiber.Router) {
		r.Post(handler.RouterRootPath, manage, s.Create)
		r.Put(RouteRole, manage, s.MapRole)
		r.Post(RouteMembers, manage, s.AddMember)
	})

	return nil
}

// Create adds a group.
func (s *Service) Create(c *fiber.Ctx) error {
	var in permission.CreateGroupInput
	if err := handler.Bind(c, &in); err != nil {
		return handler.Error(c, err)
	}

	id, err := s.deps.Service.CreateGroup(c.UserContext(), in)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "name": in.Name})
}

// MapRole maps the group to a role, replacing any previous mapping.
func (s *Service) MapRole(c *fiber.Ctx) error {
	id, err := handler.ID(c)
	if err != nil {
		return handler.Error(c, err)
	}

	var body roleBody
	if err = handler.Bind(c, &body); err != nil {
		return handler.Error(c, err)
	}

	if err = s.deps.Service.MapGroupToRole(c.UserContext(), id, body.RoleID); err != nil {
		return handler.Error(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// AddMember adds a user to the group.
func (s *Service) AddMember(c *fiber.Ctx) error {
	id, err := handler.ID(c)
	if err != nil {
		return handler.Error(c, err)
	}

	var body memberBody
	if err = handler.Bind(c, &body); err != nil {
		return handler.Error(c, err)
	}

	if err = s.deps.Service.AddUserToGroup(c.UserContext(), body.UserID, id); err != nil {
		return handler.Error(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
