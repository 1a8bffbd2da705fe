package cart

import (
	"context"
	"fmt"
	"math"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

// MaxQuantity bounds a single cart line; stock and order item quantities
// are stored as 32-bit integers.
const MaxQuantity = math.MaxInt32

// Line is a cart entry joined with its current catalog data.
type Line struct {
	Product  product.Product
	Quantity int
	Amount   decimal.Decimal
}

// View is a priced snapshot of a cart.
type View struct {
	Lines   []Line
	Summary pricing.Breakdown
}

// Service mutates carts and prices them against the live catalog.
type Service struct {
	store    Store
	products product.Repository
	policy   pricing.Policy
}

// NewService creates a cart Service.
func NewService(store Store, products product.Repository, policy pricing.Policy) *Service {
	return &Service{store: store, products: products, policy: policy}
}

// View returns the cart lines with current prices and the totals. Lines
// whose product no longer exists are left out.
func (s *Service) View(ctx context.Context, cartID string) (*View, error) {
	c, err := s.store.Get(ctx, cartID)
	if err != nil {
		return nil, apperr.Persistence("get cart", err)
	}
	if c.IsEmpty() {
		return &View{Summary: s.policy.Quote(nil)}, nil
	}

	fetched, err := s.products.GetByIDs(ctx, c.ProductIDs())
	if err != nil {
		return nil, apperr.Persistence("get cart products", err)
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	v := &View{}
	priced := make([]pricing.Line, 0, len(c.Items))
	for _, id := range c.ProductIDs() {
		p, ok := byID[id]
		if !ok {
			continue
		}
		pl := pricing.Line{UnitPrice: p.Price, Quantity: c.Items[id]}
		priced = append(priced, pl)
		v.Lines = append(v.Lines, Line{Product: p, Quantity: pl.Quantity, Amount: pl.Amount().Round(2)})
	}
	v.Summary = s.policy.Quote(priced)
	return v, nil
}

// Add increases the quantity of productID by qty. The resulting line may
// not exceed the product's stock.
func (s *Service) Add(ctx context.Context, cartID, productID string, qty int) error {
	if qty < 1 {
		return &apperr.ValidationError{Field: "quantity", Message: "must be at least 1"}
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return &apperr.NotFoundError{Entity: "product", ID: productID}
		}
		return apperr.Persistence("get product", err)
	}

	c, err := s.store.Get(ctx, cartID)
	if err != nil {
		return apperr.Persistence("get cart", err)
	}
	// Compare against the remaining room so the sum never overflows.
	if qty > lineLimit(p)-c.Items[productID] {
		return exceedsStock(p)
	}
	c = c.Clone()
	c.Items[productID] += qty

	return apperr.Persistence("save cart", s.store.Set(ctx, cartID, c))
}

// Update sets the quantities of existing lines. A quantity of zero or less
// removes the line; products not in the cart are ignored. No line may
// exceed its product's stock; nothing is saved if one does.
func (s *Service) Update(ctx context.Context, cartID string, quantities map[string]int) error {
	c, err := s.store.Get(ctx, cartID)
	if err != nil {
		return apperr.Persistence("get cart", err)
	}

	var raised []string
	for id, qty := range quantities {
		if _, ok := c.Items[id]; ok && qty > 0 {
			if qty > MaxQuantity {
				return &apperr.ValidationError{Field: "quantity", Message: "too large"}
			}
			raised = append(raised, id)
		}
	}
	if len(raised) > 0 {
		fetched, err := s.products.GetByIDs(ctx, raised)
		if err != nil {
			return apperr.Persistence("get cart products", err)
		}
		for _, p := range fetched {
			if quantities[p.ID] > lineLimit(&p) {
				return exceedsStock(&p)
			}
		}
	}

	c = c.Clone()
	for id, qty := range quantities {
		if _, ok := c.Items[id]; !ok {
			continue
		}
		if qty > 0 {
			c.Items[id] = qty
		} else {
			delete(c.Items, id)
		}
	}

	return apperr.Persistence("save cart", s.store.Set(ctx, cartID, c))
}

// Remove drops a line from the cart.
func (s *Service) Remove(ctx context.Context, cartID, productID string) error {
	c, err := s.store.Get(ctx, cartID)
	if err != nil {
		return apperr.Persistence("get cart", err)
	}
	if _, ok := c.Items[productID]; !ok {
		return nil
	}
	c = c.Clone()
	delete(c.Items, productID)

	return apperr.Persistence("save cart", s.store.Set(ctx, cartID, c))
}

func lineLimit(p *product.Product) int {
	return min(p.Stock, MaxQuantity)
}

func exceedsStock(p *product.Product) error {
	return &apperr.ValidationError{
		Field:   "quantity",
		Message: fmt.Sprintf("only %d of product %s in stock", max(p.Stock, 0), p.ID),
	}
}
