package auth

import (
	"context"
	"slices"

	"github.com/rs/zerolog"

	"github.com/pmhub/pmhub/internal/logger"
	"github.com/pmhub/pmhub/internal/permission"
)

// Checker answers permission lookups. The permission cache manager implements it.
type Checker interface {
	CheckUserPermission(ctx context.Context, userID uint64, resourceType, actionType, resourceID string) (bool, error)
	BatchCheckPermissions(ctx context.Context, userID uint64, checks []permission.Check) (map[string]bool, error)
	GetUserRoles(ctx context.Context, userID uint64) ([]string, error)
}

// Guard resolves allow or deny for a caller and a required capability.
type Guard struct {
	checker   Checker
	superRole string
	log       zerolog.Logger
}

// NewGuard creates a Guard. Holders of superRole pass every check; an empty superRole disables the bypass.
func NewGuard(checker Checker, superRole string) *Guard {
	return &Guard{
		checker:   checker,
		superRole: superRole,
		log:       logger.Component("guard"),
	}
}

// IsSuper reports whether the user holds the super role.
func (g *Guard) IsSuper(ctx context.Context, userID uint64) (bool, error) {
	if g.superRole == "" {
		return false, nil
	}

	roles, err := g.checker.GetUserRoles(ctx, userID)
	if err != nil {
		return false, err //nolint:wrapcheck
	}

	return slices.Contains(roles, g.superRole), nil
}

// Require returns nil if the user may perform actionType on resourceType.
func (g *Guard) Require(ctx context.Context, userID uint64, resourceType, actionType, resourceID string) error {
	if userID == 0 {
		return ErrUnauthenticated
	}

	if super, err := g.IsSuper(ctx, userID); err != nil || super {
		return err
	}

	ok, err := g.checker.CheckUserPermission(ctx, userID, resourceType, actionType, resourceID)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if !ok {
		g.log.Debug().Uint64("user", userID).Str("resourceType", resourceType).Str("actionType", actionType).
			Msg("permission denied")

		return forbidden(permission.Check{ResourceType: resourceType, ActionType: actionType})
	}

	return nil
}

// RequireAll returns nil if the user holds every check. The error lists the missing ones.
func (g *Guard) RequireAll(ctx context.Context, userID uint64, checks ...permission.Check) error {
	res, err := g.batch(ctx, userID, checks)
	if err != nil || res == nil {
		return err
	}

	var missing []permission.Check

	for _, c := range permission.Canonical(checks) {
		if !res[c.Key()] {
			missing = append(missing, c)
		}
	}

	if len(missing) > 0 {
		g.log.Debug().Uint64("user", userID).Int("missing", len(missing)).Msg("permission denied")

		return forbidden(missing...)
	}

	return nil
}

// RequireAny returns nil if the user holds at least one check.
func (g *Guard) RequireAny(ctx context.Context, userID uint64, checks ...permission.Check) error {
	res, err := g.batch(ctx, userID, checks)
	if err != nil || res == nil {
		return err
	}

	for _, ok := range res {
		if ok {
			return nil
		}
	}

	g.log.Debug().Uint64("user", userID).Int("checks", len(checks)).Msg("permission denied")

	return forbidden(permission.Canonical(checks)...)
}

// batch returns a nil map without error when the user is super.
func (g *Guard) batch(ctx context.Context, userID uint64, checks []permission.Check) (map[string]bool, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	if len(checks) == 0 {
		return nil, permission.NewValidationError("at least one permission check is required")
	}

	for i := range checks {
		if err := permission.Validate(&checks[i]); err != nil {
			return nil, err //nolint:wrapcheck
		}
	}

	if super, err := g.IsSuper(ctx, userID); err != nil || super {
		return nil, err
	}

	return g.checker.BatchCheckPermissions(ctx, userID, checks) //nolint:wrapcheck
}

// Batch answers checks for targetID, or for the caller when targetID is zero.
// Asking about another user requires PermissionManage.
func (g *Guard) Batch(ctx context.Context, callerID, targetID uint64, checks []permission.Check) (map[string]bool, error) {
	if targetID == 0 {
		targetID = callerID
	}

	if targetID != callerID {
		if err := g.Require(ctx, callerID, PermissionManage.ResourceType, PermissionManage.ActionType, ""); err != nil {
			return nil, err
		}
	}

	res, err := g.batch(ctx, targetID, checks)
	if err != nil {
		return nil, err
	}

	if res != nil {
		return res, nil
	}

	all := make(map[string]bool, len(checks))
	for _, c := range checks {
		all[c.Key()] = true
	}

	return all, nil
}
