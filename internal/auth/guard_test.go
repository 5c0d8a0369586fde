package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmhub/pmhub/internal/permission"
)

var errStoreDown = errors.New("store down")

// fakeChecker grants the pairs in perms to every user in roles.
type fakeChecker struct {
	perms   map[uint64][]permission.Record
	roles   map[uint64][]string
	err     error
	lookups int
}

func (f *fakeChecker) CheckUserPermission(_ context.Context, userID uint64, rt, at, _ string) (bool, error) {
	f.lookups++
	if f.err != nil {
		return false, f.err
	}

	return permission.HasPermission(f.perms[userID], rt, at), nil
}

func (f *fakeChecker) BatchCheckPermissions(_ context.Context, userID uint64, checks []permission.Check) (map[string]bool, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}

	return permission.BatchCheck(f.perms[userID], checks), nil
}

func (f *fakeChecker) GetUserRoles(_ context.Context, userID uint64) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.roles[userID], nil
}

const (
	pmUser    uint64 = 1
	adminUser uint64 = 2
	plainUser uint64 = 3
)

func newFake() *fakeChecker {
	return &fakeChecker{
		perms: map[uint64][]permission.Record{
			pmUser: {{ID: 1, ResourceType: "project", ActionType: "read"}},
			plainUser: {
				{ID: 2, ResourceType: "task", ActionType: "read"},
				{ID: 3, ResourceType: ResourcePermission, ActionType: ActionManage},
			},
		},
		roles: map[uint64][]string{
			pmUser:    {"PM"},
			adminUser: {"staff", "super_admin"},
			plainUser: {"member"},
		},
	}
}

func TestRequire(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	g := NewGuard(fake, "super_admin")

	require.NoError(t, g.Require(ctx, pmUser, "project", "read", ""))
	require.NoError(t, g.Require(ctx, pmUser, "project", "read", "17"))

	err := g.Require(ctx, pmUser, "project", "delete", "")
	require.ErrorIs(t, err, ErrForbidden)

	var fe *ForbiddenError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []permission.Check{{ResourceType: "project", ActionType: "delete"}}, fe.Checks)
	assert.Equal(t, "forbidden: project:delete", err.Error())

	require.ErrorIs(t, g.Require(ctx, 0, "project", "read", ""), ErrUnauthenticated)
}

func TestSuperRoleBypasses(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	g := NewGuard(fake, "super_admin")

	require.NoError(t, g.Require(ctx, adminUser, "anything", "at_all", ""))
	require.NoError(t, g.RequireAll(ctx, adminUser, permission.Check{ResourceType: "x", ActionType: "y"}))
	assert.Zero(t, fake.lookups, "super users need no permission lookup")

	res, err := g.Batch(ctx, adminUser, 0, []permission.Check{{ResourceType: "x", ActionType: "y"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"x:y": true}, res)

	// an empty super role disables the bypass
	g = NewGuard(fake, "")
	require.ErrorIs(t, g.Require(ctx, adminUser, "anything", "at_all", ""), ErrForbidden)
}

func TestRequireAllAndAny(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(newFake(), "super_admin")

	read := permission.Check{ResourceType: "task", ActionType: "read"}
	write := permission.Check{ResourceType: "task", ActionType: "write"}
	purge := permission.Check{ResourceType: "task", ActionType: "purge"}

	require.NoError(t, g.RequireAll(ctx, plainUser, read))
	require.NoError(t, g.RequireAny(ctx, plainUser, write, read))

	err := g.RequireAll(ctx, plainUser, read, write, purge)

	var fe *ForbiddenError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []permission.Check{purge, write}, fe.Checks, "only the missing pairs, in canonical order")

	require.ErrorIs(t, g.RequireAny(ctx, plainUser, write, purge), ErrForbidden)
	require.ErrorIs(t, g.RequireAll(ctx, plainUser), permission.ErrValidation)
	require.ErrorIs(t, g.RequireAny(ctx, plainUser, permission.Check{ResourceType: "task"}), permission.ErrValidation)
}

func TestBatchForAnotherUser(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(newFake(), "super_admin")
	checks := []permission.Check{{ResourceType: "project", ActionType: "read"}}

	// plainUser holds permission:manage
	res, err := g.Batch(ctx, plainUser, pmUser, checks)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"project:read": true}, res)

	// pmUser does not
	_, err = g.Batch(ctx, pmUser, plainUser, checks)
	require.ErrorIs(t, err, ErrForbidden)

	res, err = g.Batch(ctx, pmUser, pmUser, checks)
	require.NoError(t, err)
	assert.True(t, res["project:read"])
}

func TestStoreErrorDenies(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	fake.err = errStoreDown
	g := NewGuard(fake, "super_admin")

	err := g.Require(ctx, pmUser, "project", "read", "")
	require.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 503, Status(err))

	_, err = g.Batch(ctx, pmUser, 0, []permission.Check{{ResourceType: "a", ActionType: "b"}})
	require.ErrorIs(t, err, errStoreDown)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, 200, Status(nil))
	assert.Equal(t, 401, Status(ErrUnauthenticated))
	assert.Equal(t, 401, Status(permission.ErrNotFound))
	assert.Equal(t, 403, Status(forbidden(permission.Check{ResourceType: "a", ActionType: "b"})))
	assert.Equal(t, 400, Status(permission.NewValidationError("bad")))
	assert.Equal(t, 503, Status(errStoreDown))
}
