package configuration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmhub/pmhub/internal/config"
)

func TestFlatten(t *testing.T) {
	cfg := &config.Config{
		Title: "pmhub",
		DB:    config.DB{GormEngine: config.EngineMySQL, Password: "hunter2"},
		Cache: config.Cache{Enabled: true, Addr: "localhost:6379", LocalMaxEntries: 10},
	}

	settings, err := Flatten(cfg)
	require.NoError(t, err)

	byName := make(map[string]ConfigSetting, len(settings))
	for _, s := range settings {
		byName[s.Name] = s
	}

	assert.Equal(t, ConfigSetting{Name: "Title", Type: "string", Value: "pmhub"}, byName["Title"])
	assert.Equal(t, ConfigSetting{Name: "DB.Password", Type: "string", Value: redacted}, byName["DB.Password"])
	assert.Equal(t, ConfigSetting{Name: "Cache.Password", Type: "string", Value: ""}, byName["Cache.Password"])
	assert.Equal(t, "true", byName["Cache.Enabled"].Value)
	assert.Equal(t, "number", byName["Cache.LocalMaxEntries"].Type)

	for i := 1; i < len(settings); i++ {
		assert.Less(t, settings[i-1].Name, settings[i].Name)
	}
}

func TestIsSecret(t *testing.T) {
	assert.True(t, isSecret("DB.Password"))
	assert.True(t, isSecret("Cache.password"))
	assert.False(t, isSecret("DB.User"))
	assert.False(t, isSecret("Auth.SeedAdminUsername"))
}
