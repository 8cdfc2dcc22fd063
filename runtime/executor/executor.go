// Package executor drives a single plan step: outbox idempotency check, tool
// dispatch, exponential backoff on transient failures, and durable result
// storage. A step whose result is already in the outbox is never re-executed
// for the same event.
package executor

import (
	"context"
	"math/rand"
	"time"

	"github.com/intermesh-io/intermesh/runtime/outbox"
	"github.com/intermesh-io/intermesh/runtime/plan"
	"github.com/intermesh-io/intermesh/runtime/registry"
	"github.com/intermesh-io/intermesh/runtime/run"
	"github.com/intermesh-io/intermesh/runtime/telemetry"
	"github.com/intermesh-io/intermesh/runtime/toolerrors"
)

// maxJitter bounds the uniform jitter added to each backoff sleep.
const maxJitter = 50 * time.Millisecond

// Executor executes steps through the tool registry.
type Executor struct {
	registry *registry.Registry
	logger   telemetry.Logger
	// sleep is swapped in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds an executor over the given registry.
func New(reg *registry.Registry, logger telemetry.Logger) *Executor {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Executor{registry: reg, logger: logger, sleep: sleepCtx}
}

// ExecuteStep runs one step to completion or terminal failure.
//
// The idempotency key "{event_id}:{step_name}" is checked first: a stored
// result is returned without invoking the tool. Otherwise the tool is invoked
// with retries governed by execution.retry.{base_ms,max_ms} and
// slo.max_retries; the backoff for attempt n is min(max_ms, base_ms·2^(n−1))
// plus uniform jitter below 50ms. Approval-required and other non-retryable
// failures propagate immediately. A successful result is durably stored
// before it is returned.
func (e *Executor) ExecuteStep(ctx context.Context, step *plan.Step, rc *run.Context) (map[string]any, error) {
	idemKey := outbox.Key(rc.Event.ID, step.Name)
	saved, found, err := rc.Outbox.Get(idemKey)
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindStorage, "idempotency lookup failed", err)
	}
	if found {
		e.logger.Info(ctx, "idempotent_reuse", "step", step.Name, "key", idemKey, "trace_id", rc.Event.TraceID)
		return saved, nil
	}

	retry := rc.Policies.Execution.Retry
	baseMS := retry.BaseMS
	if baseMS <= 0 {
		baseMS = 100
	}
	maxMS := retry.MaxMS
	if maxMS <= 0 {
		maxMS = 1000
	}
	maxRetries := rc.Policies.SLO.MaxRetries

	for attempt := 1; ; attempt++ {
		rc.CurrentStep = step.Name
		result, err := e.registry.Dispatch(ctx, step.Tool, rc, step.Params, false)
		if err == nil {
			if perr := rc.Outbox.Put(idemKey, result); perr != nil {
				return nil, toolerrors.Wrap(toolerrors.KindStorage, "storing step result failed", perr)
			}
			e.logger.Info(ctx, "step_ok", "step", step.Name, "trace_id", rc.Event.TraceID)
			return result, nil
		}
		if toolerrors.IsKind(err, toolerrors.KindApprovalRequired) {
			e.logger.Warn(ctx, "step_waiting_approval", "step", step.Name, "trace_id", rc.Event.TraceID)
			return nil, err
		}
		if !toolerrors.Retryable(err) || attempt > maxRetries {
			e.logger.Error(ctx, "step_failed", "step", step.Name, "attempt", attempt, "error", err.Error())
			return nil, err
		}
		e.logger.Warn(ctx, "step_retry", "step", step.Name, "attempt", attempt, "error", err.Error())
		if serr := e.sleep(ctx, backoff(baseMS, maxMS, attempt)); serr != nil {
			return nil, serr
		}
	}
}

// backoff computes min(max_ms, base_ms·2^(attempt−1)) plus uniform jitter.
func backoff(baseMS, maxMS int64, attempt int) time.Duration {
	ms := baseMS << (attempt - 1)
	if ms > maxMS || ms <= 0 {
		ms = maxMS
	}
	jitter := time.Duration(rand.Int63n(int64(maxJitter))) //nolint:gosec // jitter doesn't need crypto rand
	return time.Duration(ms)*time.Millisecond + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
