package permcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmhub/pmhub/internal/config"
	"github.com/pmhub/pmhub/internal/db/models"
)

func TestOptionsFromConfigPersisted(t *testing.T) {
	var cfg config.Config
	config.ApplyDefaults(&cfg)

	opts := OptionsFromConfig(&cfg)
	assert.Equal(t, 300*time.Second, opts.TTL.Persisted)
	assert.Equal(t, time.Hour, opts.TTL.UserPermissions)

	cfg.TTL.DisablePersisted = true
	assert.Zero(t, OptionsFromConfig(&cfg).TTL.Persisted)
}

func TestDisabledPersistedWritesNoRows(t *testing.T) {
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cfg.TTL.DisablePersisted = true

	f := setup(t, false, OptionsFromConfig(&cfg))
	ctx := context.Background()

	p := f.permission(t, "project", "read")
	r := f.role(t, "pm")
	f.grant(t, r.ID, p.ID)
	u := f.user(t, "alice", r.ID)

	perms, err := f.m.GetUserPermissions(ctx, u)
	require.NoError(t, err)
	assert.Len(t, perms, 1)

	var rows int64
	require.NoError(t, f.db.Model(&models.UserPermissionCache{}).Count(&rows).Error)
	assert.Zero(t, rows)
}
