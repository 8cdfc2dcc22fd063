package tools

import (
	"context"

	"github.com/intermesh-io/intermesh/runtime/run"
)

// TransformJSON applies a named template to the event and prior step results.
//
// "merge_customer" shallow-merges the event payload with a customer attribute
// taken from the fetch_customer step's decoded JSON body; the plan declares
// that dependency explicitly so the prior result is always present by the
// time this runs. Any other template is a passthrough of {event, prior}. The
// result is always wrapped as {data}.
func (t *Toolset) TransformJSON(_ context.Context, rc *run.Context, params map[string]any, _ bool) (map[string]any, error) {
	if stringParam(params, "template_or_fn", "") == "merge_customer" {
		var customer any
		if prior, ok := rc.Results["fetch_customer"]; ok {
			customer = prior["json"]
		}
		merged := make(map[string]any, len(rc.Event.Payload)+1)
		for k, v := range rc.Event.Payload {
			merged[k] = v
		}
		merged["customer"] = customer
		return map[string]any{"data": merged}, nil
	}
	return map[string]any{"data": map[string]any{
		"event": rc.Event.Payload,
		"prior": rc.Results,
	}}, nil
}
