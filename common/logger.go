package common

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled reports false so callers skip formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger shared by the engine and all of its sub-packages.
// The engine is silent until a logger is set. Passing nil restores the silent default.
// Safe for concurrent use.
//
// Levels used:
//   - Debug: per-resource diagnostics (descriptor allocation, barrier recording)
//   - Info: lifecycle events (adapter selected, swap chain resized, quilt registered)
//   - Warn: recoverable issues (adapter attempt failed, config reload rejected)
//   - Error: fatal conditions right before the frame loop exits
//
// Parameters:
//   - l: the logger to install
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current shared logger.
//
// Returns:
//   - *slog.Logger: the active logger, never nil
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// ComponentLogger returns the shared logger tagged with a component attribute.
//
// Parameters:
//   - name: the component name, e.g. "renderer" or "bridge"
//
// Returns:
//   - *slog.Logger: the tagged logger
func ComponentLogger(name string) *slog.Logger {
	return Logger().With(slog.String("component", name))
}
