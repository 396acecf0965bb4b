// Package logging configures zerolog output for devlink processes.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger for the named component at the given
// level. Unknown level names fall back to info.
func New(component, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
