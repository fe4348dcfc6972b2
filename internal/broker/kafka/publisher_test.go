package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/laundry-orders/internal/domain/event"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{w: w, newID: func() string { return "evt-1" }}
	at := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)

	err := p.Publish(context.Background(), event.Event{
		Type:       event.PaymentReceived,
		OrderID:    "order-1",
		OrderCode:  "ORD-20250615-ABCDEF123456",
		OutletID:   "outlet-1",
		Status:     "Payment Received",
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "order-1", string(msg.Key))
	assert.Equal(t, "order.payment_received", string(msg.Headers[0].Value))

	var got struct {
		EventID    string `json:"event_id"`
		EventType  string `json:"event_type"`
		OccurredAt string `json:"occurred_at"`
		Payload    struct {
			OrderID   string `json:"order_id"`
			OrderCode string `json:"order_code"`
			OutletID  string `json:"outlet_id"`
			Status    string `json:"status"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "evt-1", got.EventID)
	assert.Equal(t, "order.payment_received", got.EventType)
	assert.Equal(t, "2025-06-15T09:30:00Z", got.OccurredAt)
	assert.Equal(t, "order-1", got.Payload.OrderID)
	assert.Equal(t, "Payment Received", got.Payload.Status)
}

func TestPublisher_WriteError(t *testing.T) {
	p := &Publisher{w: &fakeWriter{err: errors.New("leader not available")}, newID: func() string { return "x" }}

	err := p.Publish(context.Background(), event.Event{Type: event.OrderCreated, OrderID: "o"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order.created")
}
