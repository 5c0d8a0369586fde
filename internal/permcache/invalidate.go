package permcache

import (
	"context"
)

func (m *Manager) bump() {
	m.gen.Add(1)
}

func (m *Manager) deletePatterns(ctx context.Context, patterns ...string) int {
	n := 0
	for _, p := range patterns {
		n += m.cache.DeletePattern(ctx, p)
	}

	return n
}

// InvalidateUser drops the user's permission list, role codes, access checks and batch checks.
func (m *Manager) InvalidateUser(ctx context.Context, userID uint64) {
	m.bump()

	n := m.deletePatterns(ctx, m.keys.UserScope(userID)...)
	if m.cache.Delete(ctx, m.keys.User(userID)) {
		n++
	}

	recordInvalidation("user", n)
	m.log.Debug().Uint64("user", userID).Int("keys", n).Msg("user cache invalidated")
}

// InvalidateUsers calls InvalidateUser for each user.
func (m *Manager) InvalidateUsers(ctx context.Context, userIDs []uint64) {
	for _, id := range userIDs {
		m.InvalidateUser(ctx, id)
	}
}

// InvalidateRole drops the role's permission list and the whole matrix.
func (m *Manager) InvalidateRole(ctx context.Context, roleID uint) {
	m.bump()

	n := m.deletePatterns(ctx, m.keys.Namespace(nsMatrix))
	if m.cache.Delete(ctx, m.keys.Role(roleID)) {
		n++
	}

	recordInvalidation("role", n)
	m.log.Debug().Uint("role", roleID).Int("keys", n).Msg("role cache invalidated")
}

// InvalidateAllRoles drops every role permission list and the matrix.
func (m *Manager) InvalidateAllRoles(ctx context.Context) {
	m.bump()

	n := m.deletePatterns(ctx, m.keys.Namespace(nsRole), m.keys.Namespace(nsMatrix))

	recordInvalidation("roles", n)
	m.log.Debug().Int("keys", n).Msg("role caches invalidated")
}

// InvalidatePermission drops the permission detail and everything listing permissions.
func (m *Manager) InvalidatePermission(ctx context.Context, permissionID uint) {
	m.bump()

	n := m.invalidateLists(ctx)
	if m.cache.Delete(ctx, m.keys.Detail(permissionID)) {
		n++
	}

	recordInvalidation("permission", n)
	m.log.Debug().Uint("permission", permissionID).Int("keys", n).Msg("permission cache invalidated")
}

// InvalidatePermissionLists drops the filtered pages, the active list and the matrix.
func (m *Manager) InvalidatePermissionLists(ctx context.Context) {
	m.bump()

	n := m.invalidateLists(ctx)

	recordInvalidation("lists", n)
	m.log.Debug().Int("keys", n).Msg("permission lists invalidated")
}

func (m *Manager) invalidateLists(ctx context.Context) int {
	n := m.deletePatterns(ctx, m.keys.Namespace(nsList), m.keys.Namespace(nsMatrix))
	if m.cache.Delete(ctx, m.keys.Active()) {
		n++
	}

	return n
}

// InvalidateAllUsers drops every per-user key. Used when one change can reach an unbounded set of users.
func (m *Manager) InvalidateAllUsers(ctx context.Context) {
	m.bump()

	n := m.deletePatterns(ctx, m.keys.AllUsers()...)

	recordInvalidation("users", n)
	m.log.Info().Int("keys", n).Msg("all user caches invalidated")
}

// ClearAll drops every cached key and invalidates the persisted fallback rows.
func (m *Manager) ClearAll(ctx context.Context) int {
	m.bump()

	n := m.cache.DeletePattern(ctx, m.keys.All())

	if m.opts.TTL.Persisted > 0 {
		if err := m.src.InvalidateAllPersisted(ctx); err != nil {
			m.log.Warn().Err(err).Msg("failed to invalidate persisted permissions")
		}
	}

	recordInvalidation("all", n)
	m.log.Info().Int("keys", n).Msg("permission cache cleared")

	return n
}
