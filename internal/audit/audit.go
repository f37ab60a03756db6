package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event types.
const (
	EventToolCall   = "tool_call"
	EventToolOK     = "tool_ok"
	EventToolError  = "tool_error"
	EventCacheHit   = "cache_hit"
	EventCacheStore = "cache_store"
	EventRejected   = "limit_rejected"
)

// Event represents an audit entry for a tool invocation.
type Event struct {
	// Type describes the event kind.
	Type string
	// Tool is the tool name.
	Tool string
	// CorrelationID links related events.
	CorrelationID string
	// Kind is the error kind for failed calls.
	Kind string
	// Reason provides additional context.
	Reason string
	// Duration is the handler run time, when known.
	Duration time.Duration
}

// Logger records audit events.
type Logger interface {
	// Record stores an audit event.
	Record(ctx context.Context, event Event)
}

// StdLogger writes audit events to slog.
type StdLogger struct {
	logger *slog.Logger
}

// New returns a StdLogger.
func New(logger *slog.Logger) *StdLogger {
	return &StdLogger{logger: logger}
}

// Record logs an audit event.
func (l *StdLogger) Record(ctx context.Context, event Event) {
	if l == nil || l.logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("type", event.Type),
		slog.String("tool", event.Tool),
		slog.String("correlation_id", event.CorrelationID),
	}
	if event.Kind != "" {
		attrs = append(attrs, slog.String("kind", event.Kind))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}
