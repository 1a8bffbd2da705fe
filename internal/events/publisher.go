// Package events publishes order domain events to RabbitMQ.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	// Exchange is the topic exchange all storefront events go to.
	Exchange     = "shop.events"
	eventVersion = 1
	publishWait  = 3 * time.Second
)

// RoutingKey returns the versioned routing key of an event kind, such as
// "order.placed.v1".
func RoutingKey(kind order.EventKind) string {
	return string(kind) + ".v1"
}

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

var _ order.Publisher = (*Publisher)(nil)

// Publisher sends order events as persistent JSON messages. A channel closed
// by the broker, for example after a channel-level exception, is reopened on
// the next Publish.
type Publisher struct {
	mu   sync.Mutex
	ch   channel
	open func() (channel, error)
	now  func() time.Time
}

// NewPublisher opens a channel on conn and declares the events exchange.
func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	p := newPublisher(func() (channel, error) { return openChannel(conn) })
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.channel(); err != nil {
		return nil, err
	}
	return p, nil
}

func openChannel(conn *amqp.Connection) (channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, errors.Wrapf(err, "declare exchange %s", Exchange)
	}
	return ch, nil
}

func newPublisher(open func() (channel, error)) *Publisher {
	return &Publisher{open: open, now: time.Now}
}

// channel returns the open channel, reopening it when needed. p.mu must be
// held.
func (p *Publisher) channel() (channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.open()
	if err != nil {
		return nil, err
	}
	p.ch = ch
	return ch, nil
}

// Close closes the underlying channel.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		return nil
	}
	return p.ch.Close()
}

// Publish sends e to the events exchange. A publish that fails because the
// channel was closed underneath it is retried once on a fresh channel.
func (p *Publisher) Publish(ctx context.Context, e order.Event) error {
	eventID := uuid.New().String()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    eventID,
		Timestamp:    p.now().UTC(),
		Type:         string(e.Kind),
		Body:         encodeEnvelope(eventID, e),
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishWait)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	for range 2 {
		var ch channel
		if ch, err = p.channel(); err != nil {
			break
		}
		err = ch.PublishWithContext(pubCtx, Exchange, RoutingKey(e.Kind), false, false, msg)
		if !errors.Is(err, amqp.ErrClosed) {
			break
		}
		p.ch = nil
	}
	if err != nil {
		return errors.Wrapf(err, "publish %s", e.Kind)
	}
	return nil
}

// encodeEnvelope renders the event as
// {eventName, eventVersion, eventId, occurredAt, payload}.
func encodeEnvelope(eventID string, ev order.Event) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("eventName")
	e.Str(string(ev.Kind))
	e.FieldStart("eventVersion")
	e.Int(eventVersion)
	e.FieldStart("eventId")
	e.Str(eventID)
	e.FieldStart("occurredAt")
	e.Str(ev.OccurredAt.UTC().Format(time.RFC3339Nano))
	e.FieldStart("payload")
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(ev.OrderID)
	if ev.UserID != "" {
		e.FieldStart("userId")
		e.Str(ev.UserID)
	}
	if ev.Status != "" {
		e.FieldStart("status")
		e.Str(string(ev.Status))
	}
	if ev.PreviousStatus != "" {
		e.FieldStart("previousStatus")
		e.Str(string(ev.PreviousStatus))
	}
	if ev.Kind != order.EventDeleted {
		e.FieldStart("total")
		e.Str(ev.Total.StringFixed(2))
	}
	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}
