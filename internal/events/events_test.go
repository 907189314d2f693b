package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	topic   string
	key     []byte
	value   []byte
	headers map[string]string
}

type memSink struct{ msgs []captured }

func (m *memSink) Publish(topic string, key, value []byte, headers map[string]string) {
	m.msgs = append(m.msgs, captured{topic, key, value, headers})
}

func TestEmitter_Envelope(t *testing.T) {
	sink := &memSink{}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	em := &Emitter{Sink: sink, Producer: "order-api", Now: func() time.Time { return at }}

	ctx := WithTrace(context.Background(), "req-1")
	err := em.Emit(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, "order-1",
		OrderStatusChangedPayload{OrderID: "order-1", From: "processing", To: "shipped"})
	require.NoError(t, err)
	require.Len(t, sink.msgs, 1)

	msg := sink.msgs[0]
	assert.Equal(t, TopicOrderStatusChanged, msg.topic)
	assert.Equal(t, []byte("order-1"), msg.key)
	assert.Equal(t, EventOrderStatusChanged, msg.headers["x-event-type"])

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.value, &env))
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "order-api", env.Producer)
	assert.Equal(t, "req-1", env.TraceID)
	assert.True(t, env.OccurredAt.Equal(at))
	assert.Equal(t, time.UTC, env.OccurredAt.Location())

	p, err := UnwrapPayload[OrderStatusChangedPayload](env)
	require.NoError(t, err)
	assert.Equal(t, "shipped", p.To)
}

func TestEmitter_NilIsNoop(t *testing.T) {
	var em *Emitter
	assert.NoError(t, em.Emit(context.Background(), TopicOrderCreated, EventOrderCreated, "x", struct{}{}))
}
