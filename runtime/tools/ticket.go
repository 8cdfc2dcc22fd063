package tools

import (
	"context"
	"fmt"

	"github.com/intermesh-io/intermesh/runtime/run"
	"github.com/intermesh-io/intermesh/runtime/toolerrors"
)

// ticketTopic is the outbox topic backing the monotonic ticket counter.
const ticketTopic = "tickets"

// OpenTicket opens an incident ticket. P0 tickets are gated on a recorded
// human approval for (trace_id, current step); without one the tool fails
// with the approval_required kind, which the executor propagates without
// retrying. Ticket IDs are "T-<n>" with n allocated from the outbox counter.
func (t *Toolset) OpenTicket(ctx context.Context, rc *run.Context, params map[string]any, isCompensation bool) (map[string]any, error) {
	priority := stringParam(params, "priority", "P1")
	if priority == "P0" && !rc.Approvals.IsApproved(rc.Event.TraceID, rc.CurrentStep) {
		return nil, toolerrors.Errorf(toolerrors.KindApprovalRequired,
			"open_ticket: P0 ticket for step %q awaits approval", rc.CurrentStep)
	}
	n, err := rc.Outbox.NextOffset(ticketTopic)
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindStorage, "open_ticket: allocate ticket id", err)
	}
	ticketID := fmt.Sprintf("T-%d", n)
	t.logger.Warn(ctx, "ticket_opened",
		"ticket_id", ticketID,
		"title", stringParam(params, "title", "Integration incident"),
		"priority", priority,
		"trace_id", rc.Event.TraceID,
		"event_id", rc.Event.ID,
		"compensation", isCompensation,
	)
	return map[string]any{"ticket_id": ticketID}, nil
}
