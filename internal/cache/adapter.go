// Package cache implements the two-tier cache: a bounded in-process map in
// front of an optional redis tier.
//
// Writes go to both tiers, reads prefer redis and repopulate the local tier.
// Redis failures are logged, counted and absorbed; while redis is unreachable
// the adapter serves from the local tier only and queues invalidations to
// replay once the health check sees redis again.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pmhub/pmhub/internal/config"
	"github.com/pmhub/pmhub/internal/logger"
)

const maxPendingInvalidations = 1024

// Options of an Adapter.
type Options struct {
	LocalMaxEntries     int
	LocalTTL            time.Duration // upper bound for any local entry
	HealthCheckInterval time.Duration
	OpTimeout           time.Duration
	// Broadcast publishes invalidations on Channel so peer instances drop their local copies.
	Broadcast bool
	Channel   string
	// FlushPattern covers every key of this service, used when queued invalidations overflow.
	FlushPattern string
}

// OptionsFromConfig maps the cache configuration section to adapter options.
func OptionsFromConfig(cfg *config.Cache) Options {
	return Options{
		LocalMaxEntries:     cfg.LocalMaxEntries,
		LocalTTL:            config.Seconds(cfg.LocalTTL),
		HealthCheckInterval: config.Seconds(cfg.HealthCheckInterval),
		OpTimeout:           config.Seconds(cfg.ReadTimeout + cfg.WriteTimeout),
		Broadcast:           cfg.Broadcast,
		Channel:             cfg.Prefix + ":invalidate",
		FlushPattern:        cfg.Prefix + ":*",
	}
}

// Stats is a snapshot of adapter counters.
type Stats struct {
	LocalHits            int64 `json:"local_hits"`
	LocalMisses          int64 `json:"local_misses"`
	ExternalHits         int64 `json:"external_hits"`
	ExternalMisses       int64 `json:"external_misses"`
	Errors               int64 `json:"errors"`
	Evictions            int64 `json:"evictions"`
	LocalEntries         int   `json:"local_entries"`
	ExternalEnabled      bool  `json:"external_enabled"`
	ExternalAvailable    bool  `json:"external_available"`
	PendingInvalidations int   `json:"pending_invalidations"`
}

// Adapter is the two-tier cache. It is safe for concurrent use.
type Adapter struct {
	local      *Local
	remote     *Remote // nil when the external tier is disabled
	opts       Options
	instanceID string
	log        zerolog.Logger

	available atomic.Bool

	localHits, localMisses       atomic.Int64
	externalHits, externalMisses atomic.Int64
	errors, evictions            atomic.Int64

	pendingMu       sync.Mutex
	pending         map[string]struct{} // glob patterns to replay on redis
	pendingOverflow bool
}

// New creates an adapter. remote may be nil to run on the local tier only.
// The external tier is probed once before New returns.
func New(ctx context.Context, remote *Remote, opts Options) *Adapter {
	if opts.LocalTTL <= 0 {
		opts.LocalTTL = 5 * time.Minute
	}

	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = 30 * time.Second
	}

	a := &Adapter{
		local:      NewLocal(opts.LocalMaxEntries),
		remote:     remote,
		opts:       opts,
		instanceID: uuid.NewString(),
		log:        logger.Component("cache"),
		pending:    make(map[string]struct{}),
	}

	if remote != nil {
		a.checkHealth(ctx)
	}

	return a
}

// InstanceID identifies this adapter on the invalidation channel.
func (a *Adapter) InstanceID() string {
	return a.instanceID
}

// Available reports whether the external tier is enabled and reachable.
func (a *Adapter) Available() bool {
	return a.remote != nil && a.available.Load()
}

// Set stores value under key in both tiers. It returns false only if the value
// could not be encoded or ttl is not positive; an external failure still leaves the local copy.
func (a *Adapter) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}

	data, err := Encode(value)
	if err != nil {
		a.log.Error().Err(err).Str("key", key).Msg("cache value not encodable")

		return false
	}

	if a.Available() {
		if err := a.remote.Set(ctx, key, data, ttl); err != nil {
			a.fail(ctx, "set", key, err)
		}
	}

	a.setLocal(key, data, ttl)

	return true
}

// Get decodes the cached value of key into dest and reports whether it was found.
func (a *Adapter) Get(ctx context.Context, key string, dest any) bool {
	data, ok := a.GetRaw(ctx, key)
	if !ok {
		return false
	}

	if err := Decode(data, dest); err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache value")
		a.Delete(ctx, key)

		return false
	}

	return true
}

// GetRaw returns the framed value of key. Redis is asked first; a redis hit is
// copied into the local tier for its remaining lifetime.
func (a *Adapter) GetRaw(ctx context.Context, key string) ([]byte, bool) {
	if a.Available() {
		data, ttl, err := a.remote.Get(ctx, key)

		switch {
		case err == nil:
			a.externalHits.Add(1)
			recordLookup(TierExternal, true)

			switch {
			case ttl > 0:
				a.setLocal(key, data, ttl)
			case ttl == -1:
				a.setLocal(key, data, a.opts.LocalTTL)
			}

			return data, true
		case err == ErrMiss: //nolint:errorlint
			a.externalMisses.Add(1)
			recordLookup(TierExternal, false)
		default:
			a.fail(ctx, "get", key, err)
		}
	}

	data, ok := a.local.Get(key)
	if ok {
		a.localHits.Add(1)
	} else {
		a.localMisses.Add(1)
	}

	recordLookup(TierLocal, ok)

	return data, ok
}

// Delete removes key from both tiers and reports whether it existed in either.
func (a *Adapter) Delete(ctx context.Context, key string) bool {
	existed := a.local.Delete(key)
	recordLocalEntries(a.local.Len())

	if a.remote == nil {
		return existed
	}

	if !a.Available() {
		a.queue(escapeGlob(key))

		return existed
	}

	n, err := a.remote.Del(ctx, key)
	if err != nil {
		a.fail(ctx, "delete", key, err)
		a.queue(escapeGlob(key))

		return existed
	}

	a.publish(ctx, invalidation{Keys: []string{key}})

	return existed || n > 0
}

// DeletePattern removes every key matching the redis glob from both tiers and
// returns the number of distinct keys removed.
func (a *Adapter) DeletePattern(ctx context.Context, pattern string) int {
	removed := make(map[string]struct{})

	for _, k := range a.local.DeletePattern(pattern) {
		removed[k] = struct{}{}
	}

	recordLocalEntries(a.local.Len())

	if a.remote == nil {
		return len(removed)
	}

	if !a.Available() {
		a.queue(pattern)

		return len(removed)
	}

	keys, err := a.remote.DeletePattern(ctx, pattern)
	for _, k := range keys {
		removed[k] = struct{}{}
	}

	if err != nil {
		a.fail(ctx, "delete_pattern", pattern, err)
		a.queue(pattern)

		return len(removed)
	}

	a.publish(ctx, invalidation{Patterns: []string{pattern}})

	return len(removed)
}

// Stats returns a snapshot of the counters.
func (a *Adapter) Stats() Stats {
	a.pendingMu.Lock()
	pending := len(a.pending)
	a.pendingMu.Unlock()

	return Stats{
		LocalHits:            a.localHits.Load(),
		LocalMisses:          a.localMisses.Load(),
		ExternalHits:         a.externalHits.Load(),
		ExternalMisses:       a.externalMisses.Load(),
		Errors:               a.errors.Load(),
		Evictions:            a.evictions.Load(),
		LocalEntries:         a.local.Len(),
		ExternalEnabled:      a.remote != nil,
		ExternalAvailable:    a.Available(),
		PendingInvalidations: pending,
	}
}

// Close releases the redis connections. Cached data is not authoritative and is not flushed.
func (a *Adapter) Close() error {
	if a.remote == nil {
		return nil
	}

	return a.remote.Close()
}

func (a *Adapter) setLocal(key string, data []byte, ttl time.Duration) {
	if ttl > a.opts.LocalTTL {
		ttl = a.opts.LocalTTL
	}

	if n := a.local.Set(key, data, ttl); n > 0 {
		a.evictions.Add(int64(n))
		recordEvictions(n)
	}

	recordLocalEntries(a.local.Len())
}

// fail records an absorbed redis error and degrades to the local tier.
// Errors caused by the caller cancelling ctx do not count against redis.
func (a *Adapter) fail(ctx context.Context, op, key string, err error) {
	if ctx.Err() != nil {
		return
	}

	a.errors.Add(1)
	recordError(op)

	if a.available.Swap(false) {
		recordAvailable(false)
		a.log.Warn().Err(err).Str("op", op).Str("key", key).Msg("external cache tier unavailable, serving from local tier")

		return
	}

	a.log.Debug().Err(err).Str("op", op).Str("key", key).Msg("external cache operation failed")
}

func (a *Adapter) queue(pattern string) {
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()

	if a.pendingOverflow {
		return
	}

	if len(a.pending) >= maxPendingInvalidations {
		a.pendingOverflow = true
		a.pending = make(map[string]struct{})

		return
	}

	a.pending[pattern] = struct{}{}
}

func (a *Adapter) takePending() ([]string, bool) {
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()

	patterns := make([]string, 0, len(a.pending))
	for p := range a.pending {
		patterns = append(patterns, p)
	}

	overflow := a.pendingOverflow
	a.pending = make(map[string]struct{})
	a.pendingOverflow = false

	return patterns, overflow
}
