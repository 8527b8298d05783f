package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is attached to every log line.
const ServiceName = "hoa-backend"

// Setup initializes the global zerolog level and returns a logger writing
// to stdout.
//   - level: trace, debug, info, warn, error, fatal or panic (default info)
//   - format: "json" for production, "pretty" for human-readable dev output
func Setup(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	return New(os.Stdout, format).Level(lvl)
}

// New builds a logger on w without touching global state.
func New(w io.Writer, format string) zerolog.Logger {
	if format == "pretty" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(w).
		With().
		Timestamp().
		Str("service", ServiceName).
		Caller().
		Logger()
}
