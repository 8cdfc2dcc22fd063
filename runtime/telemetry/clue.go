package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"

	"github.com/intermesh-io/intermesh/runtime/sanitize"
)

type (
	// ClueLogger delegates to goa.design/clue/log after redacting values
	// against the data policy. The logger reads formatting and debug settings
	// from the context (set via log.Context and log.WithFormat/log.WithDebug).
	ClueLogger struct {
		redactor *sanitize.Redactor
	}

	// OTELTracer wraps the global OTEL tracer provider.
	OTELTracer struct {
		tracer trace.Tracer
	}
)

// NewClueLogger constructs a Logger that sanitizes every value through the
// given redactor before handing records to clue.
func NewClueLogger(redactor *sanitize.Redactor) Logger {
	if redactor == nil {
		redactor = sanitize.New(nil)
	}
	return &ClueLogger{redactor: redactor}
}

// NewTracer constructs a Tracer backed by the global TracerProvider; configure
// the provider via Init (or OTEL environment variables) before handling events.
func NewTracer() Tracer {
	return &OTELTracer{tracer: otel.Tracer("github.com/intermesh-io/intermesh/runtime")}
}

// Debug implements Logger.
func (l *ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, l.fielders(msg, keyvals)...)
}

// Info implements Logger.
func (l *ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, l.fielders(msg, keyvals)...)
}

// Warn implements Logger.
func (l *ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	log.Warn(ctx, l.fielders(msg, keyvals)...)
}

// Error implements Logger.
func (l *ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, l.fielders(msg, keyvals)...)
}

// fielders converts variadic key-value pairs (k1, v1, k2, v2, ...) into clue
// Fielders, masking any key the data policy redacts and sanitizing nested
// structures in the values. Non-string keys are skipped; an odd trailing key
// is paired with nil.
func (l *ClueLogger) fielders(msg string, keyvals []any) []log.Fielder {
	fielders := []log.Fielder{log.KV{K: "msg", V: msg}}
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		if l.redactor.Redacts(key) {
			v = sanitize.Mask
		} else {
			v = l.redactor.Sanitize(v)
		}
		fielders = append(fielders, log.KV{K: key, V: v})
	}
	return fielders
}

// Start implements Tracer.
func (t *OTELTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}
