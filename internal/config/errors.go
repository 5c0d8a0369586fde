package config

import (
	"errors"
)

var (
	// ErrEmptyURL error if config webserver.URL is empty.
	ErrEmptyURL = errors.New("toml config webserver.url can not be empty")

	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrUnknownGormEngine error if config db.gormEngine is not mysql, postgres or sqlite.
	ErrUnknownGormEngine = errors.New("toml config db.gormEngine must be one of mysql, postgres, sqlite")

	// ErrNilConfig is returned when a component is built without a configuration.
	ErrNilConfig = errors.New("config is nil")

	// ErrEmptyRedisAddr error if the external cache tier is enabled without an address.
	ErrEmptyRedisAddr = errors.New("toml config cache.addr can not be empty when cache.enabled is true")
)
