package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/config"
	"github.com/pmhub/pmhub/internal/db/models"
	"github.com/pmhub/pmhub/internal/permission"
	"github.com/pmhub/pmhub/internal/web/session"
)

const superRoleName = "Super Administrator"

// Seeded reports what Seed created.
type Seeded struct {
	Permissions   int
	SuperRoleID   uint
	AdminID       uint64
	AdminPassword string // only set when the admin was created
}

// Seed creates the built-in permissions and the super role, granting every
// built-in permission to it. The admin user is created with the super role
// and a random password when the user table is empty.
// Running Seed again changes nothing.
func Seed(ctx context.Context, svc *permission.Service, cfg *config.Auth) (Seeded, error) {
	var out Seeded

	ids := make([]uint, 0, len(auth.Builtin()))

	for _, in := range auth.Builtin() {
		rec, err := svc.CreatePermission(ctx, in)

		switch {
		case err == nil:
			out.Permissions++
		case errors.Is(err, permission.ErrConflict):
			rec, err = permissionByCode(ctx, svc, in.Code)
			if err != nil {
				return out, err
			}
		default:
			return out, fmt.Errorf("seed permission %s: %w", in.Code, err)
		}

		ids = append(ids, rec.ID)
	}

	role, err := svc.RoleByCode(ctx, cfg.SuperRoleCode)
	if errors.Is(err, permission.ErrNotFound) {
		role, err = svc.CreateRole(ctx, permission.CreateRoleInput{
			Code:     cfg.SuperRoleCode,
			Name:     superRoleName,
			IsSystem: true,
		})
	}

	if err != nil {
		return out, fmt.Errorf("seed super role: %w", err)
	}

	out.SuperRoleID = role.ID

	if _, err = svc.AssignPermissionsToRole(ctx, permission.GrantInput{
		RoleID:        role.ID,
		PermissionIDs: ids,
		Reason:        "seed",
	}); err != nil {
		return out, fmt.Errorf("seed super role grants: %w", err)
	}

	if cfg.SeedAdminUsername == "" {
		return out, nil
	}

	var users int64
	if err = svc.Store().DB().WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		return out, fmt.Errorf("count users: %w", err)
	}

	if users > 0 {
		return out, nil
	}

	if out.AdminPassword, err = session.Token(12); err != nil { //nolint:mnd
		return out, err //nolint:wrapcheck
	}

	email := cfg.SeedAdminEmail
	if email == "" {
		email = cfg.SeedAdminUsername + "@localhost.localdomain"
	}

	out.AdminID, err = svc.CreateUser(ctx, permission.CreateUserInput{
		Username: cfg.SeedAdminUsername,
		Email:    email,
		Password: out.AdminPassword,
		RoleID:   role.ID,
	})
	if err != nil {
		return out, fmt.Errorf("seed admin user: %w", err)
	}

	log.Warn().Str("username", cfg.SeedAdminUsername).Str("password", out.AdminPassword).
		Msg("initial admin user created, change the password")

	return out, nil
}

func permissionByCode(ctx context.Context, svc *permission.Service, code string) (permission.Record, error) {
	var p models.Permission
	if err := svc.Store().DB().WithContext(ctx).Where("code = ?", code).First(&p).Error; err != nil {
		return permission.Record{}, fmt.Errorf("load permission %s: %w", code, err)
	}

	return permission.FromModel(&p), nil
}
