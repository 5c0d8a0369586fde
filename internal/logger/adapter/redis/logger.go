// Package redis hands go-redis internal messages to zerolog.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger implements the go-redis internal logging interface.
type Logger struct {
	level zerolog.Level
}

// New returns a Logger writing at the given level.
func New(level zerolog.Level) *Logger {
	return &Logger{level: level}
}

// Printf implements the go-redis logging interface.
func (l *Logger) Printf(ctx context.Context, format string, v ...any) {
	logger := log.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}

	logger.WithLevel(l.level).Str("component", "redis").Msg(fmt.Sprintf(format, v...))
}

// Install replaces the go-redis package logger.
func Install(level zerolog.Level) {
	goredis.SetLogger(New(level))
}
