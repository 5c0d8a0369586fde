package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	accesslog "github.com/pmhub/pmhub/internal/logger/adapter/fiber"
	"github.com/pmhub/pmhub/internal/permission"
)

// UserID returns the authenticated user id stored in the request locals, zero when absent.
func UserID(c *fiber.Ctx) uint64 {
	id, _ := c.Locals(accesslog.LocalUserID).(uint64)

	return id
}

// SetUserID stores the authenticated user id in the request locals.
func SetUserID(c *fiber.Ctx, userID uint64) {
	c.Locals(accesslog.LocalUserID, userID)
}

// Status maps a guard error to an HTTP status.
// Anything that is not a decision is a failure to decide and denies with 503.
func Status(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, permission.ErrNotFound):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, permission.ErrValidation):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusServiceUnavailable
	}
}

func deny(c *fiber.Ctx, err error) error {
	status := Status(err)

	msg := err.Error()
	if status == fiber.StatusServiceUnavailable {
		log.Error().Err(err).Uint64("user", UserID(c)).Str("path", c.Path()).Msg("permission check failed")

		msg = "permission check unavailable"
	}

	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// RequirePermission creates Fiber middleware that requires one permission.
func RequirePermission(g *Guard, resourceType, actionType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := g.Require(c.UserContext(), UserID(c), resourceType, actionType, ""); err != nil {
			return deny(c, err)
		}

		return c.Next()
	}
}

// RequireResourcePermission is RequirePermission scoped to the route parameter param.
func RequireResourcePermission(g *Guard, resourceType, actionType, param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := g.Require(c.UserContext(), UserID(c), resourceType, actionType, c.Params(param)); err != nil {
			return deny(c, err)
		}

		return c.Next()
	}
}

// RequireAnyPermission creates Fiber middleware that requires at least one of the given permissions.
func RequireAnyPermission(g *Guard, checks ...permission.Check) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := g.RequireAny(c.UserContext(), UserID(c), checks...); err != nil {
			return deny(c, err)
		}

		return c.Next()
	}
}

// RequireAllPermissions creates Fiber middleware that requires all the given permissions.
func RequireAllPermissions(g *Guard, checks ...permission.Check) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := g.RequireAll(c.UserContext(), UserID(c), checks...); err != nil {
			return deny(c, err)
		}

		return c.Next()
	}
}
