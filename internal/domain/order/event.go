package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind names an order domain event.
type EventKind string

const (
	EventPlaced        EventKind = "order.placed"
	EventStatusChanged EventKind = "order.status_changed"
	EventDeleted       EventKind = "order.deleted"
)

// Event describes a committed order change.
type Event struct {
	Kind           EventKind
	OrderID        string
	UserID         string
	Status         Status
	PreviousStatus Status
	Total          decimal.Decimal
	OccurredAt     time.Time
}

// Publisher delivers order events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
