package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intermesh-io/intermesh/runtime/approval"
	"github.com/intermesh-io/intermesh/runtime/config"
	"github.com/intermesh-io/intermesh/runtime/event"
	"github.com/intermesh-io/intermesh/runtime/outbox"
	"github.com/intermesh-io/intermesh/runtime/policy"
	"github.com/intermesh-io/intermesh/runtime/run"
	"github.com/intermesh-io/intermesh/runtime/secrets"
	"github.com/intermesh-io/intermesh/runtime/toolerrors"
)

// fakeProducer records publishes and can be told to fail.
type fakeProducer struct {
	published []string
	fail      bool
}

func (f *fakeProducer) Publish(_ context.Context, topic string, _ []byte) error {
	if f.fail {
		return errors.New("broker down")
	}
	f.published = append(f.published, topic)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func testRunContext(t *testing.T) *run.Context {
	t.Helper()
	ob, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ob.Close() })
	ev := &event.Event{
		ID: "e1", Source: "test", Type: "ORDER_CREATED",
		Payload: map[string]any{"order_id": "o1"},
		Headers: map[string]string{"x-tenant": "acme"},
	}
	ev.EnsureTraceID()
	return run.NewContext(ev, policy.Default(), ob, approval.NewStore())
}

func TestCallRESTRoutesAndDecodes(t *testing.T) {
	var gotTrace, gotTenant, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Get("x-trace-id")
		gotTenant = r.Header.Get("x-tenant")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1"}`))
	}))
	defer srv.Close()

	ts := NewToolset(Options{
		Config: &config.Config{Services: map[string]config.Service{
			"crm": {BaseURL: srv.URL, Auth: "bearer:CRM_TOKEN"},
		}},
		Secrets: secrets.NewProvider(secrets.Config{Static: map[string]string{"CRM_TOKEN": "abc"}}),
	})
	rc := testRunContext(t)

	res, err := ts.CallREST(context.Background(), rc, map[string]any{"url": "/crm/customer", "method": "GET"}, false)
	require.NoError(t, err)
	assert.Equal(t, 200, res["status"])
	assert.Equal(t, map[string]any{"id": "c1"}, res["json"])
	assert.Equal(t, rc.Event.TraceID, gotTrace)
	assert.Equal(t, "acme", gotTenant)
	assert.Equal(t, "Bearer abc", gotAuth)
}

func TestCallRESTNonJSONBodyYieldsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	ts := NewToolset(Options{})
	res, err := ts.CallREST(context.Background(), testRunContext(t), map[string]any{"url": srv.URL}, false)
	require.NoError(t, err)
	assert.Equal(t, 200, res["status"])
	assert.Nil(t, res["json"])
}

func TestCallRESTAbsoluteURLSkipsAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(204)
	}))
	defer srv.Close()

	ts := NewToolset(Options{
		Config: &config.Config{Services: map[string]config.Service{
			"crm": {BaseURL: "http://unused", Auth: "bearer:CRM_TOKEN"},
		}},
		Secrets: secrets.NewProvider(secrets.Config{Static: map[string]string{"CRM_TOKEN": "abc"}}),
	})
	res, err := ts.CallREST(context.Background(), testRunContext(t), map[string]any{"url": srv.URL, "method": "POST"}, false)
	require.NoError(t, err)
	assert.Equal(t, 204, res["status"])
	assert.Empty(t, gotAuth)
}

func TestCallREST5xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(503)
	}))
	defer srv.Close()

	ts := NewToolset(Options{})
	res, err := ts.CallREST(context.Background(), testRunContext(t), map[string]any{"url": srv.URL}, false)
	require.NoError(t, err, "status codes are the critic's concern")
	assert.Equal(t, 503, res["status"])
}

func TestCallRESTTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // immediate close forces a connection error

	ts := NewToolset(Options{})
	_, err := ts.CallREST(context.Background(), testRunContext(t), map[string]any{"url": srv.URL}, false)
	require.Error(t, err)
	assert.True(t, toolerrors.IsKind(err, toolerrors.KindHTTP))
}

func TestPublishKafkaBrokerPath(t *testing.T) {
	prod := &fakeProducer{}
	ts := NewToolset(Options{Producer: prod})
	rc := testRunContext(t)

	res, err := ts.PublishKafka(context.Background(), rc, map[string]any{"topic": "oms.events"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"oms.events"}, prod.published)
	assert.Nil(t, res["offset"])
	assert.Equal(t, "oms.events", res["topic"])
	_, hasFallback := res["fallback"]
	assert.False(t, hasFallback)
}

func TestPublishKafkaFallbackWhenUnavailable(t *testing.T) {
	ts := NewToolset(Options{})
	rc := testRunContext(t)

	res, err := ts.PublishKafka(context.Background(), rc, map[string]any{"topic": "oms.events"}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res["offset"])
	assert.Equal(t, true, res["fallback"])

	res, err = ts.PublishKafka(context.Background(), rc, map[string]any{"topic": "oms.events"}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res["offset"], "fallback offsets are monotonic per topic")
}

func TestPublishKafkaFallbackOnPublishError(t *testing.T) {
	prod := &fakeProducer{fail: true}
	ts := NewToolset(Options{Producer: prod})
	rc := testRunContext(t)

	res, err := ts.PublishKafka(context.Background(), rc, map[string]any{"topic": "oms.events"}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res["offset"])
	assert.Equal(t, true, res["fallback"])
}

func TestTransformJSONMergeCustomer(t *testing.T) {
	ts := NewToolset(Options{})
	rc := testRunContext(t)
	rc.Results["fetch_customer"] = map[string]any{"status": 200, "json": map[string]any{"id": "c1"}}

	res, err := ts.TransformJSON(context.Background(), rc, map[string]any{"template_or_fn": "merge_customer"}, false)
	require.NoError(t, err)
	data := res["data"].(map[string]any)
	assert.Equal(t, "o1", data["order_id"])
	assert.Equal(t, map[string]any{"id": "c1"}, data["customer"])
}

func TestTransformJSONPassthrough(t *testing.T) {
	ts := NewToolset(Options{})
	rc := testRunContext(t)
	rc.Results["prev"] = map[string]any{"x": 1}

	res, err := ts.TransformJSON(context.Background(), rc, map[string]any{"template_or_fn": "other"}, false)
	require.NoError(t, err)
	data := res["data"].(map[string]any)
	assert.Equal(t, rc.Event.Payload, data["event"])
	assert.Equal(t, rc.Results, data["prior"])
}

func TestOpenTicketP0RequiresApproval(t *testing.T) {
	ts := NewToolset(Options{})
	rc := testRunContext(t)
	rc.CurrentStep = "open_ticket"

	_, err := ts.OpenTicket(context.Background(), rc, map[string]any{"priority": "P0"}, false)
	require.Error(t, err)
	assert.True(t, toolerrors.IsKind(err, toolerrors.KindApprovalRequired))

	rc.Approvals.Approve(rc.Event.TraceID, "open_ticket", "oncall")
	res, err := ts.OpenTicket(context.Background(), rc, map[string]any{"priority": "P0"}, false)
	require.NoError(t, err)
	assert.Equal(t, "T-0", res["ticket_id"])
}

func TestOpenTicketDefaultPriorityUnGated(t *testing.T) {
	ts := NewToolset(Options{})
	rc := testRunContext(t)

	res, err := ts.OpenTicket(context.Background(), rc, map[string]any{}, false)
	require.NoError(t, err)
	assert.Equal(t, "T-0", res["ticket_id"])

	res, err = ts.OpenTicket(context.Background(), rc, map[string]any{}, false)
	require.NoError(t, err)
	assert.Equal(t, "T-1", res["ticket_id"], "ticket counter is monotonic")
}

func TestRouteJMSPerDestinationCounters(t *testing.T) {
	ts := NewToolset(Options{})
	rc := testRunContext(t)

	res, err := ts.RouteJMS(context.Background(), rc, map[string]any{"destination": "queue/Orders"}, false)
	require.NoError(t, err)
	assert.Equal(t, "queue/Orders", res["destination"])
	assert.Equal(t, "jms-0", res["message_id"])

	res, err = ts.RouteJMS(context.Background(), rc, map[string]any{"destination": "queue/Orders"}, false)
	require.NoError(t, err)
	assert.Equal(t, "jms-1", res["message_id"])

	res, err = ts.RouteJMS(context.Background(), rc, map[string]any{}, false)
	require.NoError(t, err)
	assert.Equal(t, "QUEUE.DEFAULT", res["destination"])
	assert.Equal(t, "jms-0", res["message_id"], "counters are per destination")
}
