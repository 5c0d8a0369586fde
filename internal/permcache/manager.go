// Package permcache decides what permission data is cached, for how long,
// under which key, and when it is thrown away.
//
// Reads go cache first, then to the persisted fallback rows for user
// permissions, then to the store. Concurrent misses of one key share a single
// computation. Every invalidation bumps a generation counter; a computation
// that started before an invalidation still answers its callers but does not
// write its result back, so a stale list never outlives the change that made
// it stale.
package permcache

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/pmhub/pmhub/internal/cache"
	"github.com/pmhub/pmhub/internal/config"
	"github.com/pmhub/pmhub/internal/logger"
	"github.com/pmhub/pmhub/internal/permission"
)

// Cache is the two-tier cache the manager stores into.
type Cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool
	Get(ctx context.Context, key string, dest any) bool
	Delete(ctx context.Context, key string) bool
	DeletePattern(ctx context.Context, pattern string) int
	Stats() cache.Stats
}

// Source is the authoritative side the manager computes from.
type Source interface {
	UserPermissions(ctx context.Context, userID uint64) ([]permission.Record, error)
	UserRoleCodes(ctx context.Context, userID uint64) ([]string, error)
	RolePermissions(ctx context.Context, roleID uint) ([]permission.Record, error)
	Matrix(ctx context.Context) (permission.Matrix, error)
	ListPermissions(ctx context.Context, f permission.Filter) (permission.Page, error)
	GetPermission(ctx context.Context, id uint) (permission.Record, error)
	ActivePermissions(ctx context.Context) ([]permission.Record, error)
	RecentActiveUsers(ctx context.Context, limit int) ([]uint64, error)

	PersistedUserPermissions(ctx context.Context, userID uint64, now time.Time) ([]permission.Record, bool, error)
	SaveUserPermissions(ctx context.Context, userID uint64, recs []permission.Record, ttl time.Duration, now time.Time) error
	InvalidateAllPersisted(ctx context.Context) error
}

// TTLs per namespace.
type TTLs struct {
	UserPermissions  time.Duration
	RolePermissions  time.Duration
	PermissionMatrix time.Duration
	ResourceAccess   time.Duration
	PermissionList   time.Duration
	PermissionDetail time.Duration
	// Persisted is the lifetime of the database fallback rows, zero disables them.
	Persisted time.Duration
}

// Options of a Manager.
type Options struct {
	Prefix            string
	TTL               TTLs
	WarmupBatchSize   int
	WarmupConcurrency int
}

// OptionsFromConfig maps the configuration to manager options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Prefix: cfg.Cache.Prefix,
		TTL: TTLs{
			UserPermissions:  config.Seconds(cfg.TTL.UserPermissions),
			RolePermissions:  config.Seconds(cfg.TTL.RolePermissions),
			PermissionMatrix: config.Seconds(cfg.TTL.PermissionMatrix),
			ResourceAccess:   config.Seconds(cfg.TTL.ResourceAccess),
			PermissionList:   config.Seconds(cfg.TTL.PermissionList),
			PermissionDetail: config.Seconds(cfg.TTL.PermissionDetail),
			Persisted:        config.Seconds(cfg.TTL.PersistedFallback),
		},
		WarmupBatchSize: cfg.Cache.WarmupBatchSize,
	}

	if cfg.TTL.DisablePersisted {
		opts.TTL.Persisted = 0
	}

	return opts
}

// Stats of a Manager.
type Stats struct {
	Hits        int64       `json:"hits"`
	Misses      int64       `json:"misses"`
	Errors      int64       `json:"errors"`
	HitRate     float64     `json:"hit_rate"`
	Generation  uint64      `json:"generation"`
	LastWarmup  *time.Time  `json:"last_warmup,omitempty"`
	WarmedUsers int         `json:"warmed_users"`
	Cache       cache.Stats `json:"cache"`
}

// Manager caches permission data computed from a Source. It is safe for concurrent use.
type Manager struct {
	cache Cache
	src   Source
	keys  Keys
	opts  Options
	log   zerolog.Logger
	now   func() time.Time

	group singleflight.Group
	gen   atomic.Uint64

	hits, misses, errors atomic.Int64
	lastWarmup           atomic.Pointer[time.Time]
	warmed               atomic.Int64
}

var _ permission.Invalidator = (*Manager)(nil)

// New creates a Manager. Zero TTLs take the defaults of config.ApplyDefaults.
func New(c Cache, src Source, opts Options) *Manager {
	var defaults config.Config

	config.ApplyDefaults(&defaults)
	def := OptionsFromConfig(&defaults)

	if opts.Prefix == "" {
		opts.Prefix = def.Prefix
	}

	setDuration(&opts.TTL.UserPermissions, def.TTL.UserPermissions)
	setDuration(&opts.TTL.RolePermissions, def.TTL.RolePermissions)
	setDuration(&opts.TTL.PermissionMatrix, def.TTL.PermissionMatrix)
	setDuration(&opts.TTL.ResourceAccess, def.TTL.ResourceAccess)
	setDuration(&opts.TTL.PermissionList, def.TTL.PermissionList)
	setDuration(&opts.TTL.PermissionDetail, def.TTL.PermissionDetail)

	if opts.WarmupBatchSize <= 0 {
		opts.WarmupBatchSize = def.WarmupBatchSize
	}

	if opts.WarmupConcurrency <= 0 {
		opts.WarmupConcurrency = 8
	}

	return &Manager{
		cache: c,
		src:   src,
		keys:  Keys{Prefix: opts.Prefix},
		opts:  opts,
		log:   logger.Component("permcache"),
		now:   time.Now,
	}
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

// Keys returns the key builder.
func (m *Manager) Keys() Keys {
	return m.keys
}

// load returns the cached value of key or computes, caches and returns it.
// Callers missing the same key in the same generation share one computation.
func load[T any](ctx context.Context, m *Manager, ns, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var cached T
	if m.cache.Get(ctx, key, &cached) {
		m.hits.Add(1)
		recordRequest(ns, true)

		return cached, nil
	}

	m.misses.Add(1)
	recordRequest(ns, false)

	gen := m.gen.Load()
	flight := key + "#" + strconv.FormatUint(gen, 10)

	v, err, _ := m.group.Do(flight, func() (any, error) {
		// the computation outlives a caller that gives up
		cctx := context.WithoutCancel(ctx)

		v, err := compute(cctx)
		if err != nil {
			return v, err
		}

		if m.gen.Load() == gen {
			m.cache.Set(cctx, key, v, ttl)

			// an invalidation between the check and the write may have missed the entry
			if m.gen.Load() != gen {
				m.cache.Delete(cctx, key)
			}
		}

		return v, nil
	})
	if err != nil {
		m.errors.Add(1)

		var zero T

		return zero, err
	}

	return v.(T), nil //nolint:forcetypeassert
}

// GetUserPermissions returns the user's effective permissions.
func (m *Manager) GetUserPermissions(ctx context.Context, userID uint64) ([]permission.Record, error) {
	return load(ctx, m, nsUser, m.keys.User(userID), m.opts.TTL.UserPermissions, func(ctx context.Context) ([]permission.Record, error) {
		return m.computeUserPermissions(ctx, userID)
	})
}

func (m *Manager) computeUserPermissions(ctx context.Context, userID uint64) ([]permission.Record, error) {
	if m.opts.TTL.Persisted <= 0 {
		return m.src.UserPermissions(ctx, userID) //nolint:wrapcheck
	}

	gen := m.gen.Load()
	now := m.now()

	recs, ok, err := m.src.PersistedUserPermissions(ctx, userID, now)
	if err != nil {
		m.log.Warn().Err(err).Uint64("user", userID).Msg("persisted permissions unreadable, using store")
	}

	if ok {
		return recs, nil
	}

	recs, err = m.src.UserPermissions(ctx, userID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if m.gen.Load() == gen {
		if err := m.src.SaveUserPermissions(ctx, userID, recs, m.opts.TTL.Persisted, now); err != nil {
			m.log.Warn().Err(err).Uint64("user", userID).Msg("failed to persist permissions")
		}
	}

	return recs, nil
}

// CheckUserPermission reports whether the user holds (resourceType, actionType).
// resourceID only scopes the cache key; it does not change the answer.
func (m *Manager) CheckUserPermission(ctx context.Context, userID uint64, resourceType, actionType, resourceID string) (bool, error) {
	check := permission.Check{ResourceType: resourceType, ActionType: actionType}
	if err := permission.Validate(&check); err != nil {
		return false, err //nolint:wrapcheck
	}

	key := m.keys.Resource(userID, resourceType, actionType, resourceID)

	return load(ctx, m, nsResource, key, m.opts.TTL.ResourceAccess, func(ctx context.Context) (bool, error) {
		perms, err := m.GetUserPermissions(ctx, userID)
		if err != nil {
			return false, err
		}

		return permission.HasPermission(perms, resourceType, actionType), nil
	})
}

// BatchCheckPermissions answers every check from one permission lookup.
// The result is keyed by "resource_type:action_type"; lists holding the same
// pairs in any order share one cache entry.
func (m *Manager) BatchCheckPermissions(ctx context.Context, userID uint64, checks []permission.Check) (map[string]bool, error) {
	if err := validateChecks(checks); err != nil {
		return nil, err
	}

	canonical := permission.Canonical(checks)
	key := m.keys.Batch(userID, canonical)

	return load(ctx, m, nsBatch, key, m.opts.TTL.ResourceAccess, func(ctx context.Context) (map[string]bool, error) {
		perms, err := m.GetUserPermissions(ctx, userID)
		if err != nil {
			return nil, err
		}

		return permission.BatchCheck(perms, canonical), nil
	})
}

func validateChecks(checks []permission.Check) error {
	if len(checks) == 0 {
		return permission.NewValidationError("at least one permission check is required")
	}

	for i := range checks {
		if err := permission.Validate(&checks[i]); err != nil {
			return fmt.Errorf("check %d: %w", i, err)
		}
	}

	return nil
}

// GetUserRoles returns the codes of the user's active effective roles.
func (m *Manager) GetUserRoles(ctx context.Context, userID uint64) ([]string, error) {
	return load(ctx, m, nsUser, m.keys.UserRoles(userID), m.opts.TTL.UserPermissions, func(ctx context.Context) ([]string, error) {
		return m.src.UserRoleCodes(ctx, userID)
	})
}

// GetRolePermissions returns the active permissions granted to the role.
func (m *Manager) GetRolePermissions(ctx context.Context, roleID uint) ([]permission.Record, error) {
	return load(ctx, m, nsRole, m.keys.Role(roleID), m.opts.TTL.RolePermissions, func(ctx context.Context) ([]permission.Record, error) {
		return m.src.RolePermissions(ctx, roleID)
	})
}

// GetPermissionMatrix returns the role/permission matrix.
func (m *Manager) GetPermissionMatrix(ctx context.Context) (permission.Matrix, error) {
	return load(ctx, m, nsMatrix, m.keys.Matrix(), m.opts.TTL.PermissionMatrix, m.src.Matrix)
}

// ListPermissions returns one filtered page of permissions.
func (m *Manager) ListPermissions(ctx context.Context, f permission.Filter) (permission.Page, error) {
	f = f.Normalize()

	return load(ctx, m, nsList, m.keys.List(f), m.opts.TTL.PermissionList, func(ctx context.Context) (permission.Page, error) {
		return m.src.ListPermissions(ctx, f)
	})
}

// GetPermission returns one permission.
func (m *Manager) GetPermission(ctx context.Context, id uint) (permission.Record, error) {
	return load(ctx, m, nsDetail, m.keys.Detail(id), m.opts.TTL.PermissionDetail, func(ctx context.Context) (permission.Record, error) {
		return m.src.GetPermission(ctx, id)
	})
}

// ActivePermissions returns every active permission.
func (m *Manager) ActivePermissions(ctx context.Context) ([]permission.Record, error) {
	return load(ctx, m, nsActive, m.keys.Active(), m.opts.TTL.PermissionList, m.src.ActivePermissions)
}

// Stats returns the manager and adapter counters.
func (m *Manager) Stats() Stats {
	st := Stats{
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		Errors:      m.errors.Load(),
		Generation:  m.gen.Load(),
		LastWarmup:  m.lastWarmup.Load(),
		WarmedUsers: int(m.warmed.Load()),
		Cache:       m.cache.Stats(),
	}

	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}

	return st
}
