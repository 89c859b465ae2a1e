// Package logger provides the daemon's structured logging setup: log/slog
// with the corpus's own ANSI-colored text handler. There is no rotation —
// spec.md's Non-goals explicitly exclude log rotation, and the daemon's own
// stdout/stderr are redirected once to fixed files at daemonize time
// (internal/logger does not manage per-process child output; that's
// internal/process's Spec.Stdout/Stderr truncate-on-open redirect).
package logger

import (
	"io"
	"log/slog"
)

// New builds the daemon-wide logger, writing colorized text records to w.
// level controls the minimum record level emitted (slog.LevelInfo by
// default if level is nil).
func New(w io.Writer, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	return slog.New(NewColorTextHandler(w, opts))
}
