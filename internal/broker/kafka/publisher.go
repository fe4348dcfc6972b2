// Package kafka publishes order lifecycle events to a Kafka topic.
package kafka

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/laundry-orders/internal/domain/event"
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ event.Publisher = (*Publisher)(nil)

// Publisher writes one message per event, keyed by order id so that the
// events of an order stay in one partition.
type Publisher struct {
	w     writer
	newID func() string
}

// NewPublisher creates a Publisher for topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		newID: uuid.NewString,
	}
}

// Publish implements event.Publisher.
func (p *Publisher) Publish(ctx context.Context, e event.Event) error {
	msg := kafka.Message{
		Key:   []byte(e.OrderID),
		Value: encode(p.newID(), e),
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write %s", e.Type)
	}
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.w.Close()
}

func encode(id string, e event.Event) []byte {
	var w jx.Encoder
	w.Obj(func(w *jx.Encoder) {
		w.Field("event_id", func(w *jx.Encoder) { w.Str(id) })
		w.Field("event_type", func(w *jx.Encoder) { w.Str(string(e.Type)) })
		w.Field("occurred_at", func(w *jx.Encoder) { w.Str(e.OccurredAt.UTC().Format(time.RFC3339Nano)) })
		w.Field("payload", func(w *jx.Encoder) {
			w.Obj(func(w *jx.Encoder) {
				w.Field("order_id", func(w *jx.Encoder) { w.Str(e.OrderID) })
				w.Field("order_code", func(w *jx.Encoder) { w.Str(e.OrderCode) })
				w.Field("outlet_id", func(w *jx.Encoder) { w.Str(e.OutletID) })
				w.Field("status", func(w *jx.Encoder) { w.Str(e.Status) })
			})
		})
	})
	return w.Bytes()
}
