// Package pricing computes order totals with fixed-point arithmetic.
package pricing

import "github.com/shopspring/decimal"

// Policy holds the configured tax and shipping rules.
type Policy struct {
	// TaxRate is a percentage applied to the subtotal (10 means 10%).
	TaxRate decimal.Decimal
	// ShippingFee is the flat fee charged at or below FreeShippingOver.
	ShippingFee decimal.Decimal
	// FreeShippingOver waives shipping when the subtotal is strictly greater.
	FreeShippingOver decimal.Decimal
}

// DefaultPolicy returns the storefront defaults: 10% tax, 15.00 shipping,
// free shipping above 100.00.
func DefaultPolicy() Policy {
	return Policy{
		TaxRate:          decimal.NewFromInt(10),
		ShippingFee:      decimal.NewFromInt(15),
		FreeShippingOver: decimal.NewFromInt(100),
	}
}

// Breakdown is the priced summary of a cart or order.
type Breakdown struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Line is a priced quantity of one product.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Amount returns UnitPrice × Quantity.
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Subtotal sums the line amounts, rounded to cents.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Amount())
	}
	return sum.Round(2)
}

// Quote prices the given lines under the policy. An empty cart costs nothing,
// shipping included.
func (p Policy) Quote(lines []Line) Breakdown {
	subtotal := Subtotal(lines)
	if len(lines) == 0 {
		return Breakdown{
			Subtotal: decimal.Zero,
			Tax:      decimal.Zero,
			Shipping: decimal.Zero,
			Total:    decimal.Zero,
		}
	}

	tax := subtotal.Mul(p.TaxRate).Div(decimal.NewFromInt(100)).Round(2)

	shipping := p.ShippingFee.Round(2)
	if subtotal.GreaterThan(p.FreeShippingOver) {
		shipping = decimal.Zero
	}

	return Breakdown{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping).Round(2),
	}
}
