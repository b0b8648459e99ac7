package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleEvent() model.OrderEvent {
	return model.OrderEvent{
		EventID:     "evt-1",
		Type:        model.OrderEventPlaced,
		OrderID:     42,
		OrderNumber: "ORD-01J0000000000000000000000",
		UserID:      7,
		Status:      model.OrderStatusPending,
		OccurredAt:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), msg.Time)
	assert.Equal(t, []kafka.Header{
		{Key: "event_type", Value: []byte("order.placed")},
		{Key: "event_id", Value: []byte("evt-1")},
	}, msg.Headers)

	var got model.OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, sampleEvent(), got)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := &KafkaPublisher{writer: &fakeWriter{err: boom}}

	err := p.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
}
