// Package telemetry wraps structured logging and tracing behind small
// interfaces so the pipeline can be tested without a collector. The clue/OTEL
// implementations live in clue.go; every value logged through this package is
// sanitized against the data policy before it reaches the sink.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Logger emits structured log records with alternating key/value pairs.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Tracer starts spans for the pipeline phases (sense, think_plan, act.<step>).
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

// NoopLogger discards all records. Useful in tests that assert on behavior
// rather than telemetry.
type NoopLogger struct{}

// Debug implements Logger.
func (NoopLogger) Debug(context.Context, string, ...any) {}

// Info implements Logger.
func (NoopLogger) Info(context.Context, string, ...any) {}

// Warn implements Logger.
func (NoopLogger) Warn(context.Context, string, ...any) {}

// Error implements Logger.
func (NoopLogger) Error(context.Context, string, ...any) {}
