// Package critic validates a step's result after execution. A rejection is
// treated as a step failure by the orchestrator and triggers saga recovery of
// the steps completed so far.
package critic

import (
	"encoding/json"

	"github.com/intermesh-io/intermesh/runtime/plan"
	"github.com/intermesh-io/intermesh/runtime/run"
	"github.com/intermesh-io/intermesh/runtime/toolerrors"
)

// Check validates result against the tool-specific rules and the SLO latency
// bound. Returns nil on acceptance and a critic_reject tool error otherwise.
//
// Rules:
//   - call_rest: the response status must be below 500. Transport succeeded,
//     but a 5xx means the downstream effect cannot be trusted.
//   - publish_kafka: an offset is required only on the outbox fallback path
//     (fallback == true). A broker publish reports no offset and is accepted.
//   - slo.max_latency_ms: when set, the event's elapsed time at step
//     completion must not exceed it.
func Check(step *plan.Step, result map[string]any, rc *run.Context) error {
	switch step.Tool {
	case "call_rest":
		status, ok := numeric(result["status"])
		if !ok || status >= 500 {
			return toolerrors.Errorf(toolerrors.KindCriticReject, "step %q: http status %v unacceptable", step.Name, result["status"])
		}
	case "publish_kafka":
		if fallback, _ := result["fallback"].(bool); fallback {
			if _, ok := numeric(result["offset"]); !ok {
				return toolerrors.Errorf(toolerrors.KindCriticReject, "step %q: fallback publish without offset", step.Name)
			}
		}
	}
	if max := rc.Policies.SLO.MaxLatencyMS; max > 0 {
		if lat := rc.LatencyMS(); lat > max {
			return toolerrors.Errorf(toolerrors.KindCriticReject, "step %q: latency %dms exceeds slo %dms", step.Name, lat, max)
		}
	}
	return nil
}

// numeric normalizes the number representations a result can carry: concrete
// ints from a fresh tool invocation, float64 or json.Number after an outbox
// round-trip.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
