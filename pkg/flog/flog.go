// Package flog provides the global structured logger for fansync.
//
// Informational records go to stdout, warnings and errors to stderr, so a
// sync driven from a script can pipe progress away while still seeing
// failures on the error stream.
package flog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// splitHandler is a slog.Handler that routes records by level: INFO and
// below to one handler, WARN and above to another.
type splitHandler struct {
	out slog.Handler
	err slog.Handler
}

func (h *splitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.out.Enabled(ctx, level) || h.err.Enabled(ctx, level)
}

func (h *splitHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.err.Handle(ctx, r)
	}
	return h.out.Handle(ctx, r)
}

func (h *splitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &splitHandler{out: h.out.WithAttrs(attrs), err: h.err.WithAttrs(attrs)}
}

func (h *splitHandler) WithGroup(name string) slog.Handler {
	return &splitHandler{out: h.out.WithGroup(name), err: h.err.WithGroup(name)}
}

var logger atomic.Pointer[slog.Logger]
var quietMode atomic.Bool

func init() {
	outHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	errHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})
	logger.Store(slog.New(&splitHandler{out: outHandler, err: errHandler}))
}

// SetOutput redirects all levels to a single writer. Intended for tests.
func SetOutput(w io.Writer) {
	quietMode.Store(false)
	logger.Store(slog.New(slog.NewTextHandler(w, nil)))
}

// SetQuiet suppresses INFO level records when enabled.
func SetQuiet(quiet bool) {
	quietMode.Store(quiet)
}

// IsQuiet reports whether INFO records are currently suppressed.
func IsQuiet() bool {
	return quietMode.Load()
}

// Info logs an informational message unless quiet mode is active.
func Info(msg string, args ...any) {
	if quietMode.Load() {
		return
	}
	logger.Load().Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	logger.Load().Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	logger.Load().Error(msg, args...)
}
