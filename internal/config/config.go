// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const (
	// EnvConfigJSON names the environment variable holding a JSON document merged over main.toml.
	EnvConfigJSON = "PMHUB_CONFIG_JSON"

	// EngineMySQL selects the gorm mysql driver.
	EngineMySQL = "mysql"
	// EnginePostgres selects the gorm postgres driver.
	EnginePostgres = "postgres"
	// EngineSQLite selects the pure go sqlite driver.
	EngineSQLite = "sqlite"

	// DefaultSuperRoleCode is the role code bypassing all permission checks.
	DefaultSuperRoleCode = "super_admin"
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		JSONConfigEnv string
		err           error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	if _, err = toml.DecodeFile(path+"main.toml", &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	JSONConfigEnv = os.Getenv(EnvConfigJSON)

	if JSONConfigEnv != "" {
		c, err = decodeAndMergeConfig(c, JSONConfigEnv)
		if err != nil {
			return c, err
		}
	}

	return c, validate(&c)
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read json config override")
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c *Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate checks the settings the daemon can not start without and
// fills in defaults for everything optional.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	switch c.DB.GormEngine {
	case "":
		c.DB.GormEngine = EngineSQLite
	case EngineMySQL, EnginePostgres, EngineSQLite:
	default:
		return errors.Wrap(ErrUnknownGormEngine, invalidErrMessage)
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errors.Wrap(ErrEmptyRedisAddr, invalidErrMessage)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = 5 // set default of 5 seconds
	}

	ApplyDefaults(c)

	return nil
}

// ApplyDefaults sets every zero cache, ttl and auth value to its default.
func ApplyDefaults(c *Config) {
	setDefault(&c.Cache.DialTimeout, 2)
	setDefault(&c.Cache.ReadTimeout, 1)
	setDefault(&c.Cache.WriteTimeout, 1)
	setDefault(&c.Cache.LocalMaxEntries, 10000) //nolint:mnd
	setDefault(&c.Cache.LocalTTL, 300)          //nolint:mnd
	setDefault(&c.Cache.HealthCheckInterval, 30)
	setDefault(&c.Cache.WarmupDelay, 60)
	setDefault(&c.Cache.WarmupBatchSize, 100) //nolint:mnd

	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "perm"
	}

	setDefault(&c.TTL.UserPermissions, 3600)  //nolint:mnd
	setDefault(&c.TTL.RolePermissions, 7200)  //nolint:mnd
	setDefault(&c.TTL.PermissionMatrix, 1800) //nolint:mnd
	setDefault(&c.TTL.ResourceAccess, 1800)   //nolint:mnd
	setDefault(&c.TTL.PermissionList, 300)    //nolint:mnd
	setDefault(&c.TTL.PermissionDetail, 600)  //nolint:mnd
	setDefault(&c.TTL.PersistedFallback, 300) //nolint:mnd

	if c.Auth.SuperRoleCode == "" {
		c.Auth.SuperRoleCode = DefaultSuperRoleCode
	}
}

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}
