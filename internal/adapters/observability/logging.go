package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a zerolog Logger tagged with the binary's component name.
// APP_ENV=dev (or development) uses a human-friendly console writer and
// defaults to debug; an unknown level falls back to info.
func NewLogger(env, level, component string) zerolog.Logger {
	return newLogger(os.Stdout, env, level, component)
}

func newLogger(out io.Writer, env, level, component string) zerolog.Logger {
	dev := env == "dev" || env == "development"
	if dev {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
		if dev {
			lvl = zerolog.DebugLevel
		}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("component", component).Logger()
}
