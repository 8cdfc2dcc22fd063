package tools

import (
	"context"
	"encoding/json"

	"github.com/intermesh-io/intermesh/runtime/run"
	"github.com/intermesh-io/intermesh/runtime/toolerrors"
)

// PublishKafka publishes {trace_id, event: payload} as JSON to the topic named
// in params. When the broker capability is unavailable, or the publish fails,
// the tool falls back to allocating the next outbox offset for the topic and
// marks the result with fallback: true so the degradation is observable. A
// broker publish reports no offset (the writer does not surface it).
func (t *Toolset) PublishKafka(ctx context.Context, rc *run.Context, params map[string]any, _ bool) (map[string]any, error) {
	topic := stringParam(params, "topic", "default")
	payload, err := json.Marshal(map[string]any{
		"trace_id": rc.Event.TraceID,
		"event":    rc.Event.Payload,
	})
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindTransient, "publish_kafka: encode payload", err)
	}

	if t.producer == nil {
		return t.fallbackOffset(ctx, rc, topic)
	}
	if perr := t.producer.Publish(ctx, topic, payload); perr != nil {
		t.logger.Error(ctx, "publish_kafka_fail", "topic", topic, "error", perr.Error())
		return t.fallbackOffset(ctx, rc, topic)
	}
	t.logger.Info(ctx, "publish_kafka", "topic", topic, "fallback", false)
	return map[string]any{"offset": nil, "topic": topic}, nil
}

func (t *Toolset) fallbackOffset(ctx context.Context, rc *run.Context, topic string) (map[string]any, error) {
	offset, err := rc.Outbox.NextOffset(topic)
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindStorage, "publish_kafka: allocate fallback offset", err)
	}
	t.logger.Info(ctx, "publish_kafka_fallback", "topic", topic, "offset", offset, "fallback", true)
	return map[string]any{"offset": offset, "topic": topic, "fallback": true}, nil
}
