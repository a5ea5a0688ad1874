package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New creates a logger at the given level.  format "json" writes one JSON
// object per line; anything else writes the human-readable console format.
func New(level, format string) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLogLevel(level))

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stdout}
	if strings.EqualFold(format, "json") {
		out = os.Stdout
	}
	return zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Logger()
}

// parseLogLevel parses log level string to zerolog.Level
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
