package gvm

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the package-wide logger. The CLI reconfigures it in main.go;
// library code defaults to a console writer at info level so importers
// get readable output without any setup.
var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger().Level(zerolog.InfoLevel)

// ConfigureLogging rebinds Log to the given writer/level, used by the CLI
// to switch between console and JSON output.
func ConfigureLogging(w io.Writer, level zerolog.Level, json bool) {
	if json {
		Log = zerolog.New(w).With().Timestamp().Logger().Level(level)
		return
	}
	Log = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger().Level(level)
}
