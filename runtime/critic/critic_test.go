package critic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intermesh-io/intermesh/runtime/approval"
	"github.com/intermesh-io/intermesh/runtime/event"
	"github.com/intermesh-io/intermesh/runtime/plan"
	"github.com/intermesh-io/intermesh/runtime/policy"
	"github.com/intermesh-io/intermesh/runtime/run"
	"github.com/intermesh-io/intermesh/runtime/toolerrors"
)

func testContext(maxLatencyMS int64) *run.Context {
	pol := &policy.Snapshot{SLO: policy.SLO{MaxLatencyMS: maxLatencyMS}}
	ev := &event.Event{ID: "e1", Type: "T"}
	ev.EnsureTraceID()
	return run.NewContext(ev, pol, nil, approval.NewStore())
}

func TestCheckRESTStatus(t *testing.T) {
	rc := testContext(0)
	step := &plan.Step{Name: "reserve", Tool: "call_rest"}

	assert.NoError(t, Check(step, map[string]any{"status": 200}, rc))
	assert.NoError(t, Check(step, map[string]any{"status": 404}, rc))
	// Replayed results carry float64 after the outbox round trip.
	assert.NoError(t, Check(step, map[string]any{"status": float64(201)}, rc))

	err := Check(step, map[string]any{"status": 503}, rc)
	require.Error(t, err)
	assert.True(t, toolerrors.IsKind(err, toolerrors.KindCriticReject))

	assert.Error(t, Check(step, map[string]any{}, rc), "missing status rejects")
}

func TestCheckPublishOffsets(t *testing.T) {
	rc := testContext(0)
	step := &plan.Step{Name: "publish", Tool: "publish_kafka"}

	// Broker path: no offset reported, accepted.
	assert.NoError(t, Check(step, map[string]any{"offset": nil, "topic": "oms.events"}, rc))

	// Fallback path requires the allocated offset.
	assert.NoError(t, Check(step, map[string]any{"offset": int64(0), "topic": "oms.events", "fallback": true}, rc))
	assert.NoError(t, Check(step, map[string]any{"offset": float64(3), "topic": "oms.events", "fallback": true}, rc))

	err := Check(step, map[string]any{"offset": nil, "topic": "oms.events", "fallback": true}, rc)
	require.Error(t, err)
	assert.True(t, toolerrors.IsKind(err, toolerrors.KindCriticReject))
}

func TestCheckLatencySLO(t *testing.T) {
	rc := testContext(50)
	step := &plan.Step{Name: "s", Tool: "transform_json"}
	assert.NoError(t, Check(step, map[string]any{"data": "x"}, rc))

	time.Sleep(60 * time.Millisecond)
	err := Check(step, map[string]any{"data": "x"}, rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latency")
}

func TestCheckLatencyDisabledWhenZero(t *testing.T) {
	rc := testContext(0)
	time.Sleep(5 * time.Millisecond)
	assert.NoError(t, Check(&plan.Step{Name: "s", Tool: "transform_json"}, map[string]any{}, rc))
}
