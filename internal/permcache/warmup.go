package permcache

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// WarmUp precomputes the permissions and roles of the most recently updated
// active users and returns how many users were warmed. Failures of single
// users are logged and skipped.
func (m *Manager) WarmUp(ctx context.Context) (int, error) {
	ids, err := m.src.RecentActiveUsers(ctx, m.opts.WarmupBatchSize)
	if err != nil {
		return 0, err //nolint:wrapcheck
	}

	var warmed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.WarmupConcurrency)

	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err //nolint:wrapcheck
			}

			if _, err := m.GetUserPermissions(gctx, id); err != nil {
				m.log.Warn().Err(err).Uint64("user", id).Msg("warm-up failed")

				return nil
			}

			if _, err := m.GetUserRoles(gctx, id); err != nil {
				m.log.Warn().Err(err).Uint64("user", id).Msg("warm-up of roles failed")

				return nil
			}

			warmed.Add(1)

			return nil
		})
	}

	err = g.Wait()
	n := int(warmed.Load())

	now := m.now()
	m.lastWarmup.Store(&now)
	m.warmed.Store(int64(n))

	m.log.Info().Int("users", n).Int("candidates", len(ids)).Msg("permission cache warmed")

	return n, err //nolint:wrapcheck
}

// Refresh clears every cached key and warms the cache again.
func (m *Manager) Refresh(ctx context.Context) (int, error) {
	m.ClearAll(ctx)

	return m.WarmUp(ctx)
}
