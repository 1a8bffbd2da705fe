package order

import (
	"context"

	"github.com/shopspring/decimal"
)

// Charge is a payment request for a single order.
type Charge struct {
	OrderID string
	UserID  string
	Amount  decimal.Decimal
}

// PaymentProcessor charges customers. Implementations return
// ErrPaymentDeclined (possibly wrapped) when the charge is refused.
type PaymentProcessor interface {
	Charge(ctx context.Context, c Charge) error
}

// SimulatedProcessor approves every charge unless Decline is set.
type SimulatedProcessor struct {
	Decline bool
}

var _ PaymentProcessor = SimulatedProcessor{}

func (p SimulatedProcessor) Charge(_ context.Context, c Charge) error {
	if p.Decline || c.Amount.IsNegative() {
		return ErrPaymentDeclined
	}
	return nil
}
