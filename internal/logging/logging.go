// Package logging provides a configured zerolog logger.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a new zerolog.Logger configured for the application.
// Debug mode lowers the level and switches to the human-readable
// console writer.
func New(serviceName string, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var out = zerolog.New(os.Stdout)
	if debug {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return out.Level(level).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}
