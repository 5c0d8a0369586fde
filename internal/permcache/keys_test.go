package permcache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pmhub/pmhub/internal/cache"
	"github.com/pmhub/pmhub/internal/permission"
)

func TestKeys(t *testing.T) {
	k := Keys{Prefix: "perm"}

	assert.Equal(t, "perm:user:7", k.User(7))
	assert.Equal(t, "perm:user:7:roles", k.UserRoles(7))
	assert.Equal(t, "perm:resource:7:project:read", k.Resource(7, "project", "read", ""))
	assert.Equal(t, "perm:resource:7:project:read:42", k.Resource(7, "project", "read", "42"))
	assert.Equal(t, "perm:role:3", k.Role(3))
	assert.Equal(t, "perm:matrix:all", k.Matrix())
	assert.Equal(t, "perm:detail:9", k.Detail(9))
	assert.Equal(t, "perm:active", k.Active())
	assert.Equal(t, "perm:*", k.All())
}

func TestBatchKeyIgnoresOrderAndDuplicates(t *testing.T) {
	k := Keys{Prefix: "perm"}
	ab := permission.Check{ResourceType: "a", ActionType: "b"}
	cd := permission.Check{ResourceType: "c", ActionType: "d"}

	one := k.Batch(1, permission.Canonical([]permission.Check{ab, cd}))
	two := k.Batch(1, permission.Canonical([]permission.Check{cd, ab, cd}))

	assert.Equal(t, one, two)
	assert.NotEqual(t, one, k.Batch(2, permission.Canonical([]permission.Check{ab, cd})))
	assert.NotEqual(t, one, k.Batch(1, permission.Canonical([]permission.Check{ab})))
}

func TestListKeyNormalizesPaging(t *testing.T) {
	k := Keys{Prefix: "perm"}

	assert.Equal(t, k.List(permission.Filter{}), k.List(permission.Filter{Page: 1, PageSize: 20}))
	assert.NotEqual(t, k.List(permission.Filter{}), k.List(permission.Filter{Module: "task"}))
}

func TestUserScopeCoversOnlyThatUser(t *testing.T) {
	k := Keys{Prefix: "perm"}
	scope := k.UserScope(5)

	matches := func(key string) bool {
		for _, p := range scope {
			if cache.Match(p, key) {
				return true
			}
		}

		return false
	}

	assert.True(t, matches(k.UserRoles(5)))
	assert.True(t, matches(k.Resource(5, "a", "b", "")))
	assert.True(t, matches(k.Batch(5, nil)))
	assert.False(t, matches(k.UserRoles(55)))
	assert.False(t, matches(k.Resource(55, "a", "b", "")))
	assert.False(t, matches(k.Role(5)))
}
