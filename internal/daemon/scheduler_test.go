package daemon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmhub/pmhub/internal/config"
)

type countingJobs struct {
	refreshed, purged int
}

func (c *countingJobs) Refresh(context.Context) (int, error) {
	c.refreshed++

	return 0, nil
}

func (c *countingJobs) PurgeExpiredCache(context.Context) (int64, error) {
	c.purged++

	return 0, nil
}

func TestNewScheduler(t *testing.T) {
	ctx := context.Background()
	jobs := &countingJobs{}

	c, err := newScheduler(ctx, &config.Cache{}, jobs, jobs)
	require.NoError(t, err)
	assert.Nil(t, c, "no jobs configured")

	c, err = newScheduler(ctx, &config.Cache{RefreshCron: "0 3 * * *", PurgeCron: "*/15 * * * *"}, jobs, jobs)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Len(t, c.Entries(), 2)

	// jobs run through the registered wrappers
	for _, e := range c.Entries() {
		e.WrappedJob.Run()
	}

	assert.Equal(t, 1, jobs.refreshed)
	assert.Equal(t, 1, jobs.purged)

	_, err = newScheduler(ctx, &config.Cache{PurgeCron: "every now and then"}, jobs, jobs)
	require.Error(t, err)
}
