package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/permission"
)

// ErrInvalidID is returned when a route id parameter is not a positive integer.
var ErrInvalidID = permission.NewValidationError("invalid id")

// Status maps a service error to an HTTP status.
// Errors outside the taxonomy mean the store could not answer.
func Status(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, permission.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, permission.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, permission.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusServiceUnavailable
	}
}

// Error writes err as a JSON error response.
func Error(c *fiber.Ctx, err error) error {
	status := Status(err)
	body := fiber.Map{"error": err.Error()}

	var (
		ve *permission.ValidationError
		ce *permission.ConflictError
	)

	switch {
	case errors.As(err, &ve) && len(ve.Fields) > 0:
		body["fields"] = ve.Fields
	case errors.As(err, &ce) && ce.References > 0:
		body["references"] = ce.References
	case status == fiber.StatusServiceUnavailable:
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")

		body["error"] = "service unavailable"
	}

	return c.Status(status).JSON(body)
}

// ID parses the ":id" route parameter.
func ID(c *fiber.Ctx) (uint, error) {
	return UintParam(c, ParamID)
}

// UintParam parses a positive integer route parameter.
func UintParam(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}

	return uint(id), nil
}

// ID64 parses the ":id" route parameter as a user id.
func ID64(c *fiber.Ctx) (uint64, error) {
	id, err := strconv.ParseUint(c.Params(ParamID), 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}

	return id, nil
}

// Bind decodes the JSON body into dest.
func Bind(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		return permission.NewValidationError("invalid request body: " + err.Error())
	}

	return nil
}
