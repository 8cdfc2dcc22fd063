// Package event defines the inbound signal type the middleware operates on.
// Events are constructed at ingest (HTTP or broker) and are read-only for the
// remainder of their handling, with one exception: an event arriving without a
// trace identifier is assigned a fresh one exactly once before planning starts.
package event

import (
	"fmt"

	"github.com/google/uuid"
)

// Event is an immutable record of an ingested business signal.
type Event struct {
	// ID is the stable, caller-provided identifier. Together with a step name
	// it forms the outbox idempotency key, so replays of the same ID reuse
	// prior step results instead of re-executing tools.
	ID string `json:"id"`
	// Source names the upstream system that emitted the event.
	Source string `json:"source"`
	// Type is the business event type (e.g. "ORDER_CREATED").
	Type string `json:"type"`
	// Payload carries the event attributes.
	Payload map[string]any `json:"payload"`
	// Headers are propagated verbatim onto downstream HTTP requests.
	Headers map[string]string `json:"headers"`
	// TraceID correlates every log record, span, and approval for this event.
	// Optional on entry; assigned via EnsureTraceID when absent.
	TraceID string `json:"trace_id,omitempty"`
}

// Validate reports whether the event carries the fields handling requires.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event: missing id")
	}
	if e.Type == "" {
		return fmt.Errorf("event: missing type")
	}
	return nil
}

// EnsureTraceID assigns a fresh unique trace identifier if none is set and
// returns the effective trace ID. This is the only mutation an event sees
// after construction.
func (e *Event) EnsureTraceID() string {
	if e.TraceID == "" {
		e.TraceID = uuid.NewString()
	}
	return e.TraceID
}

// Observation is the planner-facing projection of an event.
type Observation struct {
	Type    string            `json:"type"`
	Payload map[string]any    `json:"payload"`
	Headers map[string]string `json:"headers"`
}

// Observe builds the observation the planner reasons over.
func (e *Event) Observe() Observation {
	return Observation{Type: e.Type, Payload: e.Payload, Headers: e.Headers}
}
