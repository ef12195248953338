// Package logging configures the process logger used by the sheetboard CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls the log level and output format.
type Options struct {
	Verbose bool
	Quiet   bool
	// Format is "text" (default) or "json".
	Format string
	Output io.Writer
}

// Level maps the verbosity flags to a slog level. Quiet wins over verbose.
func (o Options) Level() slog.Level {
	switch {
	case o.Quiet:
		return slog.LevelWarn
	case o.Verbose:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Setup builds a logger from opts, installs it as the slog default and
// returns it.
func Setup(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level()}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	logger := slog.New(handler).With("app", "sheetboard")
	slog.SetDefault(logger)
	return logger
}
