// Package observability configures the process-wide structured logger.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls the logger built by InitLogger.
type Options struct {
	Level   zerolog.Level
	NoColor bool
	// Out defaults to stderr so command output on stdout stays clean.
	Out io.Writer
}

// InitLogger builds a console logger tagged with app and installs it as the
// global zerolog logger.
func InitLogger(app string, opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	}
	logger := zerolog.New(output).Level(opts.Level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// LevelFor maps the CLI verbosity flags to a level. Quiet wins.
func LevelFor(verbose, quiet bool) zerolog.Level {
	switch {
	case quiet:
		return zerolog.WarnLevel
	case verbose:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
