// Package auth decides whether a caller may perform an action.
//
// Guard is the single entry point used by route handlers. It never caches on
// its own: every decision is one lookup through the permission cache manager,
// so all callers share one cache. A user holding the configured super role
// passes every check.
//
// Denials surface as ErrForbidden carrying only the requested
// (resource type, action type) pair. Any other error, such as an unreachable
// store, is returned as is and callers must treat it as a denial.
//
// Fiber middleware functions protect routes:
//   - RequirePermission: one (resource, action) pair
//   - RequireResourcePermission: one pair scoped to a route parameter
//   - RequireAnyPermission: at least one of several pairs
//   - RequireAllPermissions: every one of several pairs
//
// LocalProvider authenticates users against the database with Argon2id
// password hashes.
//
// Example usage:
//
//	guard := auth.NewGuard(manager, cfg.Auth.SuperRoleCode)
//
//	app.Delete("/api/permissions/:id",
//	    auth.RequirePermission(guard, auth.ResourcePermission, auth.ActionDelete),
//	    handler,
//	)
package auth
