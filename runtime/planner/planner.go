// Package planner maps an observation to intents and intents to an execution
// plan. Both functions are pure and deterministic: the intent table is
// evaluated top to bottom with first match winning, and plan assembly only
// wires a dependency when the target step is actually present, so BuildPlan
// never emits a dangling edge.
package planner

import (
	"fmt"

	"github.com/intermesh-io/intermesh/runtime/event"
	"github.com/intermesh-io/intermesh/runtime/plan"
	"github.com/intermesh-io/intermesh/runtime/run"
)

// Intent tags name the outcomes the plan must achieve.
const (
	IntentEnrichOrder      = "enrich_order"
	IntentReserveInventory = "reserve_inventory"
	IntentNotifyOMS        = "notify_oms"
)

// InferIntents derives the ordered intent list for an observation. Rules are
// evaluated in order; the first matching rule decides.
func InferIntents(obs event.Observation, _ *run.Context) []string {
	region, _ := obs.Payload["region"].(string)
	if region == "" {
		region, _ = obs.Payload["Region"].(string)
	}
	if obs.Type == "ORDER_CREATED" && (region == "US" || region == "EU") {
		return []string{IntentEnrichOrder, IntentReserveInventory, IntentNotifyOMS}
	}
	return []string{IntentNotifyOMS}
}

// BuildPlan assembles the DAG for the given intents:
//
//   - enrich_order: fetch_customer (GET /crm/customer) then merge_profile
//     (transform_json merge_customer, depends on fetch_customer).
//   - reserve_inventory: reserve (POST /wms/reservations, depends on
//     merge_profile when present) with a cancel_reservation compensation.
//   - notify_oms: publish (publish_kafka to oms.events, depends on reserve
//     when present).
//
// The returned plan is validated; a dangling dependency is a bug in this
// function and surfaces as an error rather than a runtime failure mid-plan.
func BuildPlan(intents []string, _ *run.Context) (*plan.Plan, error) {
	has := make(map[string]bool, len(intents))
	for _, it := range intents {
		has[it] = true
	}

	p := plan.New()
	if has[IntentEnrichOrder] {
		p.AddStep("fetch_customer", "call_rest", map[string]any{"url": "/crm/customer", "method": "GET"})
		p.AddStep("merge_profile", "transform_json", map[string]any{"template_or_fn": "merge_customer"}, "fetch_customer")
	}
	if has[IntentReserveInventory] {
		var deps []string
		if p.Has("merge_profile") {
			deps = append(deps, "merge_profile")
		}
		p.AddStep("reserve", "call_rest", map[string]any{"url": "/wms/reservations", "method": "POST"}, deps...)
		if err := p.AddCompensation("reserve", "call_rest", map[string]any{"url": "/wms/cancel_reservation", "method": "POST"}); err != nil {
			return nil, err
		}
	}
	if has[IntentNotifyOMS] {
		var deps []string
		if p.Has("reserve") {
			deps = append(deps, "reserve")
		}
		p.AddStep("publish", "publish_kafka", map[string]any{"topic": "oms.events"}, deps...)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	return p, nil
}
