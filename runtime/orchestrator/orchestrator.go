// Package orchestrator binds an event to a context, derives its plan, drives
// topological execution with per-step critic validation, and unwinds completed
// steps through their compensations when a step fails. One orchestrator serves
// all events; each event gets its own run context.
package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/intermesh-io/intermesh/runtime/approval"
	"github.com/intermesh-io/intermesh/runtime/critic"
	"github.com/intermesh-io/intermesh/runtime/event"
	"github.com/intermesh-io/intermesh/runtime/executor"
	"github.com/intermesh-io/intermesh/runtime/outbox"
	"github.com/intermesh-io/intermesh/runtime/planner"
	"github.com/intermesh-io/intermesh/runtime/policy"
	"github.com/intermesh-io/intermesh/runtime/registry"
	"github.com/intermesh-io/intermesh/runtime/run"
	"github.com/intermesh-io/intermesh/runtime/telemetry"
	"github.com/intermesh-io/intermesh/runtime/toolerrors"
)

// Outcome is the terminal result of handling one event.
type Outcome struct {
	// Status is "ok" or "failed".
	Status string `json:"status"`
	// TraceID is the correlation identifier bound to the event.
	TraceID string `json:"trace_id"`
	// Results holds every step result on success.
	Results map[string]map[string]any `json:"results,omitempty"`
	// Partial holds the results completed before the failure.
	Partial map[string]map[string]any `json:"partial,omitempty"`
	// FailedStep names the step whose failure ended the plan.
	FailedStep string `json:"failed_step,omitempty"`
}

// Orchestrator handles events end to end.
type Orchestrator struct {
	policies  *policy.Snapshot
	outbox    outbox.Store
	approvals *approval.Store
	registry  *registry.Registry
	executor  *executor.Executor
	logger    telemetry.Logger
	tracer    telemetry.Tracer
}

// Options configures an Orchestrator.
type Options struct {
	Policies  *policy.Snapshot
	Outbox    outbox.Store
	Approvals *approval.Store
	Registry  *registry.Registry
	Logger    telemetry.Logger
	Tracer    telemetry.Tracer
}

// New wires an orchestrator. Policies, Outbox, Approvals, and Registry are
// required; Logger and Tracer default to noop and the global OTEL tracer.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewTracer()
	}
	return &Orchestrator{
		policies:  opts.Policies,
		outbox:    opts.Outbox,
		approvals: opts.Approvals,
		registry:  opts.Registry,
		executor:  executor.New(opts.Registry, logger),
		logger:    logger,
		tracer:    tracer,
	}
}

// Approvals exposes the shared approval store for the HTTP surface.
func (o *Orchestrator) Approvals() *approval.Store {
	return o.approvals
}

// Outbox exposes the shared idempotency store.
func (o *Orchestrator) Outbox() outbox.Store {
	return o.outbox
}

// HandleEvent runs the full pipeline for one event: sense, plan, execute in
// topological order with critic validation, and recover on failure. The
// returned error is non-nil only for pre-execution failures (invalid event,
// policy violations, unplannable intents); step failures are reported through
// the failed outcome.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev *event.Event) (*Outcome, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	traceID := ev.EnsureTraceID()
	rc := run.NewContext(ev, o.policies, o.outbox, o.approvals)

	sctx, span := o.tracer.Start(ctx, "sense", trace.WithAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", ev.Type),
		attribute.String("trace.id", traceID),
	))
	o.logger.Info(sctx, "sense", "trace_id", traceID, "etype", ev.Type, "eid", ev.ID)
	obs := ev.Observe()
	span.End()

	pctx, span := o.tracer.Start(ctx, "think_plan")
	intents := planner.InferIntents(obs, rc)
	p, err := planner.BuildPlan(intents, rc)
	span.End()
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindPolicy, "plan construction failed", err)
	}
	if max := o.policies.SLO.MaxSteps; max > 0 && p.Len() > max {
		return nil, toolerrors.Errorf(toolerrors.KindPolicy, "plan has %d steps, slo allows %d", p.Len(), max)
	}
	ordered, err := p.TopoOrder()
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindPolicy, "plan ordering failed", err)
	}
	o.logger.Info(pctx, "plan_built", "trace_id", traceID, "intents", intents, "steps", p.Len())

	for _, step := range ordered {
		actCtx, span := o.tracer.Start(ctx, "act."+step.Name,
			trace.WithAttributes(attribute.String("tool", step.Tool)))
		result, err := o.executor.ExecuteStep(actCtx, step, rc)
		if err == nil {
			rc.Complete(step, result)
			err = critic.Check(step, result, rc)
		}
		span.End()
		if err != nil {
			// A gated step never completed, so nothing it did needs undoing;
			// for every other failure unwind the completed steps.
			if !toolerrors.IsKind(err, toolerrors.KindApprovalRequired) {
				o.recover(ctx, rc)
			}
			o.logger.Error(ctx, "plan_failed", "step", step.Name, "trace_id", traceID, "error", err.Error())
			return &Outcome{
				Status:     "failed",
				TraceID:    traceID,
				Partial:    rc.Results,
				FailedStep: step.Name,
			}, nil
		}
	}

	o.logger.Info(ctx, "plan_success", "trace_id", traceID)
	return &Outcome{Status: "ok", TraceID: traceID, Results: rc.Results}, nil
}

// recover invokes compensations for completed steps in reverse completion
// order. A failing compensation is logged and the unwind continues; recovery
// is best effort.
func (o *Orchestrator) recover(ctx context.Context, rc *run.Context) {
	for i := len(rc.CompletedSteps) - 1; i >= 0; i-- {
		step := rc.CompletedSteps[i]
		if step.Compensation == nil {
			continue
		}
		rc.CurrentStep = step.Name
		_, err := o.registry.Dispatch(ctx, step.Compensation.Tool, rc, step.Compensation.Params, true)
		if err != nil {
			o.logger.Error(ctx, "compensation_failed", "step", step.Name, "trace_id", rc.Event.TraceID, "error", err.Error())
			continue
		}
		o.logger.Warn(ctx, "compensation_ok", "step", step.Name, "trace_id", rc.Event.TraceID)
	}
}
