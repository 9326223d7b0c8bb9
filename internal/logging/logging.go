// Package logging builds the zerolog logger used by both binaries.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a timestamped logger at the given level writing JSON to
// stdout. Unknown levels fall back to info. Set PRETTY_LOGS=true for a
// human-readable console writer during development.
func New(service, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if os.Getenv("PRETTY_LOGS") == "true" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(lvl).With().
		Timestamp().
		Str("service", service).
		Logger()
}
