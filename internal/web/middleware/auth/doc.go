// Package auth provides the session authentication middleware of the JSON api.
//
// The middleware reads the session cookie, loads the session and stores the
// user id in fiber.Locals, where the permission guard middleware finds it.
// Requests without a valid session are answered with 401, except for the
// public paths (login, logout, health check and metrics).
//
// Usage:
//
//	app.Use(authmiddleware.New(sessions))
package auth
