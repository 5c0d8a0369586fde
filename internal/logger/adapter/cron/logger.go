// Package cron implements cron.Logger on top of zerolog.
package cron

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger implements cron.Logger.
type Logger struct{}

// New returns a cron logger using the global zerolog logger.
func New() Logger {
	return Logger{}
}

// Info logs routine scheduler messages at debug level.
func (Logger) Info(msg string, keysAndValues ...any) {
	withFields(log.Debug(), keysAndValues).Msg(msg)
}

// Error logs scheduler failures.
func (Logger) Error(err error, msg string, keysAndValues ...any) {
	withFields(log.Error().Err(err), keysAndValues).Msg(msg)
}

func withFields(e *zerolog.Event, keysAndValues []any) *zerolog.Event {
	e = e.Str("component", "cron")

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}

		e = e.Interface(key, keysAndValues[i+1])
	}

	return e
}
