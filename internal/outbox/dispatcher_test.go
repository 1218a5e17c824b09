package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/ecotrack/internal/events"
)

func newTestDispatcher(producer messageWriter, registry schemaRegistrar) *Dispatcher {
	return NewDispatcher(nil, producer, registry, time.Millisecond, 10)
}

func outboxMessage(eventID int64, eventType, topic, owner string) Message {
	return Message{
		EventID:       eventID,
		OwnerID:       owner,
		AggregateType: "activity",
		AggregateID:   "act-1",
		EventType:     eventType,
		Topic:         topic,
		SchemaSubject: topic + "-value",
		PartitionKey:  owner,
		Payload:       json.RawMessage(`{"owner_id":"` + owner + `"}`),
	}
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestDeliverGroupsByTopicAndSetsHeaders(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	d := newTestDispatcher(producer, registry)

	err := d.deliver(context.Background(), []Message{
		outboxMessage(1, events.TypeActivityLogged, "activity_events", "alice"),
		outboxMessage(2, events.TypeFootprintChanged, "footprint_events", "alice"),
		outboxMessage(3, events.TypeActivityLogged, "activity_events", "bob"),
	})
	require.NoError(t, err)

	require.Len(t, producer.writes, 2)
	require.Equal(t, "activity_events", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)
	require.Equal(t, "footprint_events", producer.writes[1].topic)

	record := producer.writes[0].messages[1]
	require.Equal(t, "bob", string(record.Key))
	require.Equal(t, events.TypeActivityLogged, header(record, HeaderEventType))
	require.Equal(t, "bob", header(record, HeaderOwnerID))
	require.Equal(t, "activity_events-value", header(record, HeaderSchemaSubject))
	require.Equal(t, byte(0), record.Value[0])
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(record.Value[1:5]))
	require.JSONEq(t, `{"owner_id":"bob"}`, string(record.Value[5:]))
}

func TestDeliverCachesSchemaIDs(t *testing.T) {
	registry := &stubRegistry{id: 21}
	d := newTestDispatcher(&stubProducer{}, registry)

	batch := []Message{
		outboxMessage(1, events.TypeActivityLogged, "activity_events", "alice"),
		outboxMessage(2, events.TypeActivityLogged, "activity_events", "bob"),
	}
	require.NoError(t, d.deliver(context.Background(), batch))
	require.NoError(t, d.deliver(context.Background(), batch))
	require.Len(t, registry.calls, 1)
}

func TestDeliverFailsOnUnknownEventType(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{}
	d := newTestDispatcher(producer, registry)

	err := d.deliver(context.Background(), []Message{outboxMessage(1, "activity.unknown", "activity_events", "alice")})
	require.ErrorContains(t, err, "no schema metadata for event_type=activity.unknown")
	require.Empty(t, producer.writes)
	require.Empty(t, registry.calls)
}

func TestDeliverPropagatesProducerError(t *testing.T) {
	d := newTestDispatcher(&stubProducer{err: errors.New("broker down")}, &stubRegistry{})
	err := d.deliver(context.Background(), []Message{outboxMessage(1, events.TypeActivityLogged, "activity_events", "alice")})
	require.ErrorContains(t, err, "broker down")
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	m := NewDLQManager(nil, 5, time.Minute)
	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 2*time.Minute, m.backoffDelay(2))
	require.Equal(t, 16*time.Minute, m.backoffDelay(5))
	require.Equal(t, time.Hour, m.backoffDelay(7))
	require.Equal(t, time.Hour, m.backoffDelay(64))
}

func TestSchemasCoverEveryEventType(t *testing.T) {
	for _, eventType := range []string{events.TypeActivityLogged, events.TypeFootprintChanged} {
		entry, ok := schemaCatalog[eventType]
		require.True(t, ok, eventType)
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(entry.Schema), &doc), eventType)
	}
}

func TestDLQOutcomesAreLabeledByEventType(t *testing.T) {
	entry := dlqEntry{EventType: events.TypeFootprintChanged, Topic: "footprint_events"}
	retries := dlqOutcomeCounter.WithLabelValues(events.TypeFootprintChanged, outcomeRetryScheduled)
	before := testutil.ToFloat64(retries)

	recordDLQOutcome(entry, outcomeRetryScheduled)
	recordDLQOutcome(entry, outcomeRetryScheduled)

	require.InDelta(t, before+2, testutil.ToFloat64(retries), 0.0001)
}
