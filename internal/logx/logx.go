// Package logx holds small pslog helpers shared across lumen.
package logx

import (
	"context"
	"io"

	"pkt.systems/pslog"
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// Or returns log, or the context logger when log is nil.
func Or(ctx context.Context, log pslog.Logger) pslog.Logger {
	if log != nil {
		return log
	}
	return pslog.Ctx(ctx)
}

// WithSession annotates the logger with a session id when available.
func WithSession(log pslog.Logger, sessionID string) pslog.Logger {
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// WithOp annotates the logger with the sync operation name.
func WithOp(log pslog.Logger, op string) pslog.Logger {
	if op != "" {
		log = log.With("op", op)
	}
	return log
}

// WithWorkspace annotates the logger with the workspace name.
func WithWorkspace(log pslog.Logger, workspace string) pslog.Logger {
	if workspace != "" {
		log = log.With("workspace", workspace)
	}
	return log
}

// Discard returns a logger that drops everything below error level into
// io.Discard. Used by tests and as a nil-safe default.
func Discard() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: pslog.ErrorLevel,
	})
}

// New returns a structured logger writing to w at the given minimum level.
func New(w io.Writer, debug bool) pslog.Logger {
	level := pslog.InfoLevel
	if debug {
		level = pslog.DebugLevel
	}
	return pslog.NewWithOptions(w, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		VerboseFields: true,
		MinLevel:      level,
	})
}
