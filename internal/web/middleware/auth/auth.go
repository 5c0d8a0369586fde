package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/web/session"
)

// PublicPaths are served without a session.
var PublicPaths = []string{"/login", "/logout", "/checkalive", "/metrics"} //nolint:gochecknoglobals

// New returns the middleware authenticating requests against sessions.
func New(sessions *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if IsPublic(c) {
			return c.Next()
		}

		data, err := sessions.Read(c.Cookies(session.CookieName))
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) {
				log.Error().Err(err).Msg("failed to read session")
			}

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": auth.ErrUnauthenticated.Error()})
		}

		auth.SetUserID(c, data.UserID)

		return c.Next()
	}
}

// IsPublic checks if the current request is for a path served without a session.
func IsPublic(c *fiber.Ctx) bool {
	p := strings.ToLower(c.Path())

	for _, public := range PublicPaths {
		if p == public || strings.HasPrefix(p, public+"/") {
			return true
		}
	}

	return false
}
