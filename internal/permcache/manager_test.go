package permcache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pmhub/pmhub/internal/cache"
	"github.com/pmhub/pmhub/internal/db/dbtest"
	"github.com/pmhub/pmhub/internal/db/models"
	"github.com/pmhub/pmhub/internal/permission"
)

type fixture struct {
	m     *Manager
	svc   *permission.Service
	db    *gorm.DB
	cache *cache.Adapter
	redis *miniredis.Miniredis // nil when the external tier is disabled
}

func cacheOptions() cache.Options {
	return cache.Options{
		LocalMaxEntries:     1000,
		LocalTTL:            time.Minute,
		HealthCheckInterval: time.Hour,
		OpTimeout:           200 * time.Millisecond,
		Channel:             "perm:invalidate",
		FlushPattern:        "perm:*",
	}
}

func setup(t *testing.T, withRedis bool, opts Options) fixture {
	t.Helper()

	f := fixture{db: dbtest.Open(t)}

	var remote *cache.Remote

	if withRedis {
		f.redis = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: f.redis.Addr(), MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
		remote = cache.NewRemote(client, 200*time.Millisecond)
	}

	f.cache = cache.New(context.Background(), remote, cacheOptions())
	t.Cleanup(func() { _ = f.cache.Close() })

	store := permission.NewStore(f.db)
	f.m = New(f.cache, store, opts)
	f.svc = permission.NewService(store, f.m)

	return f
}

// modes runs fn with and without the external tier.
func modes(t *testing.T, fn func(t *testing.T, f fixture)) {
	t.Helper()

	for _, tc := range []struct {
		name      string
		withRedis bool
	}{
		{name: "local only", withRedis: false},
		{name: "with redis", withRedis: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fn(t, setup(t, tc.withRedis, Options{Prefix: "perm"}))
		})
	}
}

func (f fixture) permission(t *testing.T, rt, at string) permission.Record {
	t.Helper()

	p, err := f.svc.CreatePermission(context.Background(), permission.CreatePermissionInput{
		Code: rt + ":" + at, Name: rt + " " + at, ResourceType: rt, ActionType: at,
	})
	require.NoError(t, err)

	return p
}

func (f fixture) role(t *testing.T, code string) permission.RoleRecord {
	t.Helper()

	r, err := f.svc.CreateRole(context.Background(), permission.CreateRoleInput{Code: code, Name: code})
	require.NoError(t, err)

	return r
}

func (f fixture) user(t *testing.T, name string, roleID uint) uint64 {
	t.Helper()

	u := models.User{Active: true, Username: name, Email: name + "@example.com", RoleID: roleID}
	require.NoError(t, f.db.Create(&u).Error)

	return u.ID
}

func (f fixture) grant(t *testing.T, roleID uint, ids ...uint) {
	t.Helper()

	_, err := f.svc.AssignPermissionsToRole(context.Background(), permission.GrantInput{RoleID: roleID, PermissionIDs: ids})
	require.NoError(t, err)
}

func TestCoherenceAfterAssign(t *testing.T) {
	modes(t, func(t *testing.T, f fixture) {
		ctx := context.Background()

		read := f.permission(t, "project", "read")
		pm := f.role(t, "PM")
		u1 := f.user(t, "u1", pm.ID)

		perms, err := f.m.GetUserPermissions(ctx, u1)
		require.NoError(t, err)
		assert.Empty(t, perms)

		ok, err := f.m.CheckUserPermission(ctx, u1, "project", "read", "")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = f.m.CheckUserPermission(ctx, u1, "project", "read", "42")
		require.NoError(t, err)
		assert.False(t, ok)

		f.grant(t, pm.ID, read.ID)

		perms, err = f.m.GetUserPermissions(ctx, u1)
		require.NoError(t, err)
		require.Len(t, perms, 1)
		assert.Equal(t, "project:read", perms[0].Code)

		for _, rid := range []string{"", "42"} {
			ok, err = f.m.CheckUserPermission(ctx, u1, "project", "read", rid)
			require.NoError(t, err)
			assert.True(t, ok, "resource %q", rid)
		}

		ok, err = f.m.CheckUserPermission(ctx, u1, "project", "delete", "")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = f.svc.RevokePermissionsFromRole(ctx, permission.GrantInput{RoleID: pm.ID, PermissionIDs: []uint{read.ID}})
		require.NoError(t, err)

		ok, err = f.m.CheckUserPermission(ctx, u1, "project", "read", "")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBatchOrderSharesEntry(t *testing.T) {
	modes(t, func(t *testing.T, f fixture) {
		ctx := context.Background()

		a := f.permission(t, "a", "b")
		r := f.role(t, "r")
		f.grant(t, r.ID, a.ID)
		u := f.user(t, "u", r.ID)

		one, err := f.m.BatchCheckPermissions(ctx, u, []permission.Check{{ResourceType: "a", ActionType: "b"}, {ResourceType: "c", ActionType: "d"}})
		require.NoError(t, err)

		hits := f.m.Stats().Hits

		two, err := f.m.BatchCheckPermissions(ctx, u, []permission.Check{{ResourceType: "c", ActionType: "d"}, {ResourceType: "a", ActionType: "b"}})
		require.NoError(t, err)

		assert.Equal(t, map[string]bool{"a:b": true, "c:d": false}, one)
		assert.Equal(t, one, two)
		assert.Equal(t, hits+1, f.m.Stats().Hits, "second order must be a cache hit")

		if f.redis != nil {
			batches := 0

			for _, k := range f.redis.Keys() {
				if strings.HasPrefix(k, "perm:batch:") {
					batches++
				}
			}

			assert.Equal(t, 1, batches)
		}
	})
}

func TestBatchInvalidatedWithUser(t *testing.T) {
	f := setup(t, true, Options{Prefix: "perm"})
	ctx := context.Background()

	p := f.permission(t, "task", "read")
	r := f.role(t, "r")
	u := f.user(t, "u", r.ID)
	checks := []permission.Check{{ResourceType: "task", ActionType: "read"}}

	res, err := f.m.BatchCheckPermissions(ctx, u, checks)
	require.NoError(t, err)
	assert.False(t, res["task:read"])

	f.grant(t, r.ID, p.ID)

	res, err = f.m.BatchCheckPermissions(ctx, u, checks)
	require.NoError(t, err)
	assert.True(t, res["task:read"])
}

func TestValidationErrors(t *testing.T) {
	f := setup(t, false, Options{})
	ctx := context.Background()

	_, err := f.m.BatchCheckPermissions(ctx, 1, nil)
	require.ErrorIs(t, err, permission.ErrValidation)

	_, err = f.m.BatchCheckPermissions(ctx, 1, []permission.Check{{ResourceType: "a"}})
	require.ErrorIs(t, err, permission.ErrValidation)

	_, err = f.m.CheckUserPermission(ctx, 1, "", "read", "")
	require.ErrorIs(t, err, permission.ErrValidation)
}

func TestSeparatorInCheckIsRejected(t *testing.T) {
	modes(t, func(t *testing.T, f fixture) {
		ctx := context.Background()

		p := f.permission(t, "doc", "read")
		r := f.role(t, "reader")
		f.grant(t, r.ID, p.ID)
		u := f.user(t, "reader", r.ID)

		_, err := f.m.CheckUserPermission(ctx, u, "doc:v2", "read", "")
		require.ErrorIs(t, err, permission.ErrValidation)

		_, err = f.m.CheckUserPermission(ctx, u, "doc", "v2:read", "")
		require.ErrorIs(t, err, permission.ErrValidation)

		_, err = f.m.BatchCheckPermissions(ctx, u, []permission.Check{{ResourceType: "doc", ActionType: "v2:read"}})
		require.ErrorIs(t, err, permission.ErrValidation)

		assert.Zero(t, f.cache.Stats().LocalEntries)

		// a resource id only scopes the key and may hold separators
		ok, err := f.m.CheckUserPermission(ctx, u, "doc", "read", "v2:1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.m.CheckUserPermission(ctx, u, "doc", "delete", "v2:1")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestUnknownUserIsNotFoundAndNotCached(t *testing.T) {
	f := setup(t, false, Options{})
	ctx := context.Background()

	_, err := f.m.GetUserPermissions(ctx, 999)
	require.ErrorIs(t, err, permission.ErrNotFound)

	_, err = f.m.CheckUserPermission(ctx, 999, "project", "read", "")
	require.ErrorIs(t, err, permission.ErrNotFound)

	assert.Zero(t, f.cache.Stats().LocalEntries)
	assert.Positive(t, f.m.Stats().Errors)
}

func TestRedisOutageKeepsCoherence(t *testing.T) {
	f := setup(t, true, Options{Prefix: "perm"})
	ctx := context.Background()

	p := f.permission(t, "file", "upload")
	r := f.role(t, "uploader")
	u := f.user(t, "u", r.ID)

	ok, err := f.m.CheckUserPermission(ctx, u, "file", "upload", "")
	require.NoError(t, err)
	assert.False(t, ok)

	f.redis.Close()

	// the first failing call marks redis unavailable
	_, err = f.m.GetUserPermissions(ctx, u)
	require.NoError(t, err)
	assert.False(t, f.cache.Available())

	f.grant(t, r.ID, p.ID)

	ok, err = f.m.CheckUserPermission(ctx, u, "file", "upload", "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRoleMatrixAndLists(t *testing.T) {
	modes(t, func(t *testing.T, f fixture) {
		ctx := context.Background()

		p := f.permission(t, "org", "read")
		r := f.role(t, "member")

		m, err := f.m.GetPermissionMatrix(ctx)
		require.NoError(t, err)
		require.Len(t, m.Roles, 1)
		assert.Empty(t, m.Roles[0].Permissions)

		rp, err := f.m.GetRolePermissions(ctx, r.ID)
		require.NoError(t, err)
		assert.Empty(t, rp)

		f.grant(t, r.ID, p.ID)

		m, err = f.m.GetPermissionMatrix(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"org:read"}, m.Roles[0].Permissions)

		rp, err = f.m.GetRolePermissions(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, rp, 1)

		page, err := f.m.ListPermissions(ctx, permission.Filter{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, page.Total)

		active, err := f.m.ActivePermissions(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 1)

		f.permission(t, "org", "write")

		page, err = f.m.ListPermissions(ctx, permission.Filter{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)

		active, err = f.m.ActivePermissions(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 2)

		detail, err := f.m.GetPermission(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "org:read", detail.Code)

		name := "Read organizations"
		_, err = f.svc.UpdatePermission(ctx, p.ID, permission.UpdatePermissionInput{Name: &name})
		require.NoError(t, err)

		detail, err = f.m.GetPermission(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, name, detail.Name)
	})
}

func TestPersistedFallback(t *testing.T) {
	f := setup(t, false, Options{Prefix: "perm", TTL: TTLs{Persisted: time.Minute}})
	ctx := context.Background()

	p := f.permission(t, "search", "run")
	r := f.role(t, "r")
	f.grant(t, r.ID, p.ID)
	u := f.user(t, "u", r.ID)

	_, err := f.m.GetUserPermissions(ctx, u)
	require.NoError(t, err)

	var row models.UserPermissionCache
	require.NoError(t, f.db.Where("user_id = ?", u).First(&row).Error)
	assert.True(t, row.IsValid)

	// with the cache tiers gone the persisted row answers
	f.cache.DeletePattern(ctx, "perm:*")
	require.NoError(t, f.db.Model(&models.RolePermission{}).Where("role_id = ?", r.ID).Update("is_granted", false).Error)

	perms, err := f.m.GetUserPermissions(ctx, u)
	require.NoError(t, err)
	assert.Len(t, perms, 1, "served from the persisted row")

	f.m.ClearAll(ctx)

	require.NoError(t, f.db.Where("user_id = ?", u).First(&row).Error)
	assert.False(t, row.IsValid)

	perms, err = f.m.GetUserPermissions(ctx, u)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestWarmUpAndRefresh(t *testing.T) {
	f := setup(t, true, Options{Prefix: "perm", WarmupBatchSize: 10})
	ctx := context.Background()

	r := f.role(t, "r")
	a := f.user(t, "a", r.ID)
	b := f.user(t, "b", r.ID)

	n, err := f.m.WarmUp(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, f.redis.Exists(f.m.Keys().User(a)))
	assert.True(t, f.redis.Exists(f.m.Keys().UserRoles(b)))

	hits := f.m.Stats().Hits

	_, err = f.m.GetUserPermissions(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, hits+1, f.m.Stats().Hits)

	n, err = f.m.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st := f.m.Stats()
	require.NotNil(t, st.LastWarmup)
	assert.Equal(t, 2, st.WarmedUsers)
	assert.Positive(t, st.HitRate)
}

func TestGetUserRolesFollowsAssignment(t *testing.T) {
	modes(t, func(t *testing.T, f fixture) {
		ctx := context.Background()

		a := f.role(t, "a")
		b := f.role(t, "b")
		u := f.user(t, "u", a.ID)

		codes, err := f.m.GetUserRoles(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, codes)

		require.NoError(t, f.svc.AssignRoleToUser(ctx, u, b.ID))

		codes, err = f.m.GetUserRoles(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, codes)
	})
}

// gatedSource blocks UserPermissions until release is closed.
type gatedSource struct {
	Source

	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSource) UserPermissions(ctx context.Context, userID uint64) ([]permission.Record, error) {
	g.calls.Add(1)
	g.once.Do(func() { close(g.started) })
	<-g.release

	return g.Source.UserPermissions(ctx, userID)
}

func TestConcurrentMissesCollapse(t *testing.T) {
	f := setup(t, false, Options{Prefix: "perm"})
	r := f.role(t, "r")
	u := f.user(t, "u", r.ID)

	src := &gatedSource{Source: permission.NewStore(f.db), started: make(chan struct{}), release: make(chan struct{})}
	m := New(f.cache, src, Options{Prefix: "perm"})

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := m.GetUserPermissions(context.Background(), u)
			assert.NoError(t, err)
		}()
	}

	<-src.started
	time.Sleep(100 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.EqualValues(t, 1, src.calls.Load())
}

func TestInvalidationDuringComputeIsNotCached(t *testing.T) {
	f := setup(t, false, Options{Prefix: "perm"})
	ctx := context.Background()

	r := f.role(t, "r")
	u := f.user(t, "u", r.ID)

	src := &gatedSource{Source: permission.NewStore(f.db), started: make(chan struct{}), release: make(chan struct{})}
	m := New(f.cache, src, Options{Prefix: "perm"})

	done := make(chan struct{})

	go func() {
		defer close(done)

		_, _ = m.GetUserPermissions(ctx, u)
	}()

	<-src.started
	m.InvalidateUser(ctx, u)
	close(src.release)
	<-done

	var cached []permission.Record
	assert.False(t, f.cache.Get(ctx, m.Keys().User(u), &cached), "a result computed across an invalidation must not be cached")

	_, err := m.GetUserPermissions(ctx, u)
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load())
}

// racingCache runs beforeSet once, ahead of the first write.
type racingCache struct {
	Cache
	beforeSet func()
}

func (c *racingCache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if fn := c.beforeSet; fn != nil {
		c.beforeSet = nil
		fn()
	}

	return c.Cache.Set(ctx, key, value, ttl)
}

func TestInvalidationDuringWriteIsNotCached(t *testing.T) {
	f := setup(t, false, Options{Prefix: "perm"})
	ctx := context.Background()

	r := f.role(t, "r")
	u := f.user(t, "u", r.ID)

	c := &racingCache{Cache: f.cache}
	m := New(c, permission.NewStore(f.db), Options{Prefix: "perm"})
	c.beforeSet = func() { m.InvalidateUser(ctx, u) }

	_, err := m.GetUserPermissions(ctx, u)
	require.NoError(t, err)

	var cached []permission.Record
	assert.False(t, f.cache.Get(ctx, m.Keys().User(u), &cached))
}
