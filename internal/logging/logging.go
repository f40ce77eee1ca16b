// Package logging builds the depot's structured logger: a log/slog.Logger
// whose handler writes to a size/age/backup-rotated file (§10). Only the
// polytoped binary builds and uses a logger; the depot-core packages take
// no logger and do not log.
package logging

import (
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the rotated log destination.
type Options struct {
	Path       string // empty writes to stderr, no rotation
	MaxSizeMB  int    // default 100
	MaxBackups int    // default 5
	MaxAgeDays int    // default 28
	Compress   bool
	Level      slog.Level
	JSON       bool // JSON handler instead of text
}

// New builds a *slog.Logger per opts. A zero Options writes text-formatted
// logs at Info level to stderr.
func New(opts Options) *slog.Logger {
	var w interface {
		Write([]byte) (int, error)
	}
	if opts.Path == "" {
		w = os.Stderr
	} else {
		maxSize := opts.MaxSizeMB
		if maxSize == 0 {
			maxSize = 100
		}
		maxBackups := opts.MaxBackups
		if maxBackups == 0 {
			maxBackups = 5
		}
		maxAge := opts.MaxAgeDays
		if maxAge == 0 {
			maxAge = 28
		}
		w = &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
			Compress:   opts.Compress,
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record, for tests that don't
// care about log output but exercise code expecting a non-nil logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
