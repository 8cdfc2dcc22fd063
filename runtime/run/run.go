// Package run holds the per-event execution context threaded through the
// planner, executor, tools, and critic. A Context is created when an event
// enters the orchestrator, is exclusively owned by that event's handling, and
// is discarded at completion; only the outbox and approval stores it points at
// are shared across events.
package run

import (
	"time"

	"github.com/intermesh-io/intermesh/runtime/approval"
	"github.com/intermesh-io/intermesh/runtime/event"
	"github.com/intermesh-io/intermesh/runtime/outbox"
	"github.com/intermesh-io/intermesh/runtime/plan"
	"github.com/intermesh-io/intermesh/runtime/policy"
)

// Context is the single-owner state for one event's handling.
type Context struct {
	// Event is the signal being handled. Read-only here; the trace ID was
	// assigned before the context was built.
	Event *event.Event
	// Policies is the frozen policy snapshot.
	Policies *policy.Snapshot
	// Outbox is the shared idempotency store.
	Outbox outbox.Store
	// Approvals is the shared approval registry.
	Approvals *approval.Store

	// CompletedSteps lists steps that finished successfully, in completion
	// order. Recovery walks it in reverse.
	CompletedSteps []*plan.Step
	// Results maps step name to the step's result.
	Results map[string]map[string]any
	// CurrentStep is the name of the step being executed; gated tools use it
	// to build their approval key.
	CurrentStep string

	startedAt time.Time
}

// NewContext builds the context for one event.
func NewContext(ev *event.Event, pol *policy.Snapshot, ob outbox.Store, apr *approval.Store) *Context {
	return &Context{
		Event:     ev,
		Policies:  pol,
		Outbox:    ob,
		Approvals: apr,
		Results:   make(map[string]map[string]any),
		startedAt: time.Now(),
	}
}

// LatencyMS returns milliseconds elapsed since the event entered handling.
func (c *Context) LatencyMS() int64 {
	return time.Since(c.startedAt).Milliseconds()
}

// Complete records a successful step and its result.
func (c *Context) Complete(s *plan.Step, result map[string]any) {
	c.CompletedSteps = append(c.CompletedSteps, s)
	c.Results[s.Name] = result
}
