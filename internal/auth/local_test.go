package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmhub/pmhub/internal/db/dbtest"
	"github.com/pmhub/pmhub/internal/db/models"
)

func TestLocalProvider(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	role := models.Role{Code: "member", Name: "Member", IsActive: true}
	require.NoError(t, db.Create(&role).Error)

	hash, err := models.HashPassword("s3cret-pass")
	require.NoError(t, err)

	active := models.User{Active: true, Username: "alice", Email: "alice@example.com", Password: hash, RoleID: role.ID}
	disabled := models.User{Username: "bob", Email: "bob@example.com", Password: hash, RoleID: role.ID}
	require.NoError(t, db.Create(&active).Error)
	require.NoError(t, db.Create(&disabled).Error)

	p := NewLocalProvider(db)

	u, err := p.Authenticate(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, active.ID, u.ID)

	_, err = p.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidPassword)

	_, err = p.Authenticate(ctx, "bob", "s3cret-pass")
	require.ErrorIs(t, err, ErrUserAccountDisabled)

	_, err = p.Authenticate(ctx, "carol", "s3cret-pass")
	require.ErrorIs(t, err, ErrUserNotFound)

	require.ErrorIs(t, p.ChangePassword(ctx, active.ID, "wrong", "new-pass-123"), ErrInvalidOldPassword)
	require.NoError(t, p.ChangePassword(ctx, active.ID, "s3cret-pass", "new-pass-123"))

	_, err = p.Authenticate(ctx, "alice", "new-pass-123")
	require.NoError(t, err)
}
