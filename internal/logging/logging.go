// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TimestampField is the key under which every log line carries its time.
const TimestampField = "ts"

// New builds a JSON logger writing to w at the given level, stamping lines in loc,
// and installs it as the global logger used through github.com/rs/zerolog/log.
// Unknown levels fall back to info.
func New(w io.Writer, level string, loc *time.Location) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimestampFieldName = TimestampField
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFunc = func() time.Time { return time.Now().In(loc) }

	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
