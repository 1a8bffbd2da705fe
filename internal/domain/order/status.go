package order

import "github.com/go-faster/errors"

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// rank orders the fulfilment path; cancelled is off the path.
var rank = map[Status]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusDelivered:  3,
}

// ParseStatus validates s as a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", errors.Errorf("unknown order status %q", s)
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Cancellable reports whether an order in this status may be cancelled.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

// CanTransition reports whether moving from s to next is allowed: forward
// along the fulfilment path (skipping is allowed), or to cancelled while
// still cancellable.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() || s == next {
		return false
	}
	if next == StatusCancelled {
		return s.Cancellable()
	}
	from, ok := rank[s]
	if !ok {
		return false
	}
	to, ok := rank[next]
	return ok && to > from
}
