// Package handler holds what every route handler shares: its dependencies and error responses.
package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/config"
	"github.com/pmhub/pmhub/internal/permcache"
	"github.com/pmhub/pmhub/internal/permission"
	"github.com/pmhub/pmhub/internal/web/session"
)

// Deps are the collaborators handlers are initialized with.
type Deps struct {
	Cfg      *config.Config
	Service  *permission.Service
	Cache    *permcache.Manager
	Guard    *auth.Guard
	Users    *auth.LocalProvider
	Sessions *session.Store
}

// Valid reports whether every dependency is set.
func (d *Deps) Valid() bool {
	return d != nil && d.Cfg != nil && d.Service != nil && d.Cache != nil &&
		d.Guard != nil && d.Users != nil && d.Sessions != nil
}

// Service is the interface for a web handler service.
type Service interface {
	Init(app *fiber.App, deps *Deps) error
}
