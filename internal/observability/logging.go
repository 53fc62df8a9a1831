package observability

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger for the service. Levels outside the known
// set fall back to info. Pretty selects the human-readable console writer for
// local development.
func NewLogger(level string, pretty bool) zerolog.Logger {
	lvl := parseLevel(level)

	var out = os.Stderr
	logger := zerolog.New(out)
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out})
	}

	return logger.Level(lvl).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
