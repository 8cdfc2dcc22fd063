package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intermesh-io/intermesh/runtime/event"
)

func TestInferIntentsOrderCreatedUS(t *testing.T) {
	obs := event.Observation{Type: "ORDER_CREATED", Payload: map[string]any{"region": "US"}}
	assert.Equal(t, []string{IntentEnrichOrder, IntentReserveInventory, IntentNotifyOMS}, InferIntents(obs, nil))
}

func TestInferIntentsAcceptsCapitalizedRegionKey(t *testing.T) {
	obs := event.Observation{Type: "ORDER_CREATED", Payload: map[string]any{"Region": "EU"}}
	assert.Equal(t, []string{IntentEnrichOrder, IntentReserveInventory, IntentNotifyOMS}, InferIntents(obs, nil))
}

func TestInferIntentsFallback(t *testing.T) {
	for name, obs := range map[string]event.Observation{
		"other region": {Type: "ORDER_CREATED", Payload: map[string]any{"region": "JP"}},
		"other type":   {Type: "SHIPMENT_DELAYED", Payload: map[string]any{"region": "US"}},
		"no payload":   {Type: "ORDER_CREATED"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, []string{IntentNotifyOMS}, InferIntents(obs, nil))
		})
	}
}

func TestBuildPlanFullOrderFlow(t *testing.T) {
	p, err := BuildPlan([]string{IntentEnrichOrder, IntentReserveInventory, IntentNotifyOMS}, nil)
	require.NoError(t, err)
	require.Equal(t, 4, p.Len())

	fetch := p.Step("fetch_customer")
	require.NotNil(t, fetch)
	assert.Equal(t, "call_rest", fetch.Tool)
	assert.Equal(t, "/crm/customer", fetch.Params["url"])

	merge := p.Step("merge_profile")
	require.NotNil(t, merge)
	assert.Equal(t, []string{"fetch_customer"}, merge.DependsOn)

	reserve := p.Step("reserve")
	require.NotNil(t, reserve)
	assert.Equal(t, []string{"merge_profile"}, reserve.DependsOn)
	require.NotNil(t, reserve.Compensation)
	assert.Equal(t, "call_rest", reserve.Compensation.Tool)
	assert.Equal(t, "/wms/cancel_reservation", reserve.Compensation.Params["url"])

	publish := p.Step("publish")
	require.NotNil(t, publish)
	assert.Equal(t, "publish_kafka", publish.Tool)
	assert.Equal(t, "oms.events", publish.Params["topic"])
	assert.Equal(t, []string{"reserve"}, publish.DependsOn)

	ordered, err := p.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, "fetch_customer", ordered[0].Name)
	assert.Equal(t, "publish", ordered[3].Name)
}

func TestBuildPlanNotifyOnly(t *testing.T) {
	p, err := BuildPlan([]string{IntentNotifyOMS}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())
	publish := p.Step("publish")
	require.NotNil(t, publish)
	assert.Empty(t, publish.DependsOn)
}

// Reserve without enrichment must not reference the absent merge_profile, and
// publish must still chain off reserve.
func TestBuildPlanReserveWithoutEnrichment(t *testing.T) {
	p, err := BuildPlan([]string{IntentReserveInventory, IntentNotifyOMS}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, p.Len())

	reserve := p.Step("reserve")
	require.NotNil(t, reserve)
	assert.Empty(t, reserve.DependsOn)
	assert.Equal(t, []string{"reserve"}, p.Step("publish").DependsOn)
	require.NoError(t, p.Validate())
}

func TestBuildPlanAlwaysWellFormed(t *testing.T) {
	combos := [][]string{
		{IntentEnrichOrder},
		{IntentReserveInventory},
		{IntentNotifyOMS},
		{IntentEnrichOrder, IntentNotifyOMS},
		{IntentEnrichOrder, IntentReserveInventory},
		{IntentReserveInventory, IntentNotifyOMS},
		{IntentEnrichOrder, IntentReserveInventory, IntentNotifyOMS},
		{},
	}
	for _, intents := range combos {
		p, err := BuildPlan(intents, nil)
		require.NoError(t, err, "intents %v", intents)
		_, err = p.TopoOrder()
		require.NoError(t, err, "intents %v", intents)
	}
}
