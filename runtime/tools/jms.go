package tools

import (
	"context"
	"fmt"

	"github.com/intermesh-io/intermesh/runtime/run"
	"github.com/intermesh-io/intermesh/runtime/toolerrors"
)

// RouteJMS routes a message to a JMS destination (an EMS queue or topic
// reached through a bridge). Message IDs are "jms-<n>" with n allocated from
// a per-destination outbox counter, so IDs stay monotonic per destination
// across restarts.
func (t *Toolset) RouteJMS(ctx context.Context, rc *run.Context, params map[string]any, isCompensation bool) (map[string]any, error) {
	dest := stringParam(params, "destination", "QUEUE.DEFAULT")
	n, err := rc.Outbox.NextOffset("jms:" + dest)
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindStorage, "route_jms: allocate message id", err)
	}
	msgID := fmt.Sprintf("jms-%d", n)
	t.logger.Info(ctx, "route_jms",
		"destination", dest,
		"message_id", msgID,
		"trace_id", rc.Event.TraceID,
		"compensation", isCompensation,
	)
	return map[string]any{"destination": dest, "message_id": msgID}, nil
}
