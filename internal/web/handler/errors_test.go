package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/permission"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, fiber.StatusOK},
		{permission.NewValidationError("bad"), fiber.StatusBadRequest},
		{fmt.Errorf("role 3: %w", permission.ErrNotFound), fiber.StatusNotFound},
		{&permission.ConflictError{Msg: "in use", References: 2}, fiber.StatusConflict},
		{auth.ErrUnauthenticated, fiber.StatusUnauthorized},
		{auth.ErrForbidden, fiber.StatusForbidden},
		{errors.New("connection refused"), fiber.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.err), "%v", tt.err)
	}
}

func TestErrorBody(t *testing.T) {
	app := fiber.New()
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return Error(c, &permission.ConflictError{Msg: "permission is granted to roles", References: 3})
	})
	app.Get("/down", func(c *fiber.Ctx) error {
		return Error(c, errors.New("dial tcp: connection refused"))
	})
	app.Get("/id/:id", func(c *fiber.Ctx) error {
		id, err := ID(c)
		if err != nil {
			return Error(c, err)
		}

		return c.JSON(fiber.Map{"id": id})
	})

	get := func(path string) (int, map[string]any) {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
		require.NoError(t, err)

		defer resp.Body.Close()

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

		return resp.StatusCode, body
	}

	status, body := get("/conflict")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.InDelta(t, 3, body["references"], 0)

	status, body = get("/down")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "service unavailable", body["error"])

	status, _ = get("/id/0")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = get("/id/12")
	assert.Equal(t, fiber.StatusOK, status)
	assert.InDelta(t, 12, body["id"], 0)
}
