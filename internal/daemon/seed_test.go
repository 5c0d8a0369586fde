package daemon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/config"
	"github.com/pmhub/pmhub/internal/db/dbtest"
	"github.com/pmhub/pmhub/internal/permission"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store := permission.NewStore(dbtest.Open(t))
	svc := permission.NewService(store, nil)
	cfg := &config.Auth{SuperRoleCode: "super_admin", SeedAdminUsername: "admin"}

	first, err := Seed(ctx, svc, cfg)
	require.NoError(t, err)
	assert.Equal(t, len(auth.Builtin()), first.Permissions)
	assert.NotZero(t, first.SuperRoleID)
	assert.NotZero(t, first.AdminID)
	assert.NotEmpty(t, first.AdminPassword)

	role, err := svc.GetRole(ctx, first.SuperRoleID)
	require.NoError(t, err)
	assert.True(t, role.IsSystem)

	grants, err := store.RolePermissions(ctx, first.SuperRoleID)
	require.NoError(t, err)
	assert.Len(t, grants, len(auth.Builtin()))

	codes, err := store.UserRoleCodes(ctx, first.AdminID)
	require.NoError(t, err)
	assert.Equal(t, []string{"super_admin"}, codes)

	_, err = auth.NewLocalProvider(store.DB()).Authenticate(ctx, "admin", first.AdminPassword)
	require.NoError(t, err)

	again, err := Seed(ctx, svc, cfg)
	require.NoError(t, err)
	assert.Zero(t, again.Permissions)
	assert.Equal(t, first.SuperRoleID, again.SuperRoleID)
	assert.Zero(t, again.AdminID, "no admin is created once users exist")
	assert.Empty(t, again.AdminPassword)
}

func TestSeedWithoutAdmin(t *testing.T) {
	ctx := context.Background()
	svc := permission.NewService(permission.NewStore(dbtest.Open(t)), nil)

	out, err := Seed(ctx, svc, &config.Auth{SuperRoleCode: "root"})
	require.NoError(t, err)
	assert.Zero(t, out.AdminID)

	role, err := svc.RoleByCode(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, out.SuperRoleID, role.ID)
}
