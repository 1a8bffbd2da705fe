// Package order implements checkout and the order status lifecycle.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// ErrNotFound is returned by repositories when an order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is a placed customer order with its pricing breakdown.
type Order struct {
	ID              string
	UserID          string
	Status          Status
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	Total           decimal.Decimal
	ShippingAddress string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Items           []Item

	// Populated by listings only.
	ItemCount int
	Username  string
	Email     string
}

// Item is an order line. UnitPrice is the price at purchase time.
type Item struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Amount returns UnitPrice × Quantity.
func (i Item) Amount() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ListFilter narrows order listings. An empty UserID lists every user's
// orders and an empty Status matches all statuses.
type ListFilter struct {
	UserID  string
	Status  Status
	Page    int
	PerPage int
}

// Offset returns the row offset for the filter's page.
func (f ListFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}

// Page is one page of an order listing.
type Page struct {
	Orders  []Order
	Total   int
	Page    int
	PerPage int
}

// Repository defines persistence operations for orders.
type Repository interface {
	// WithinTx runs fn inside a single database transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Get returns an order with its items, or ErrNotFound.
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f ListFilter) (*Page, error)
}

// Tx is the set of row-level operations available inside a transaction.
type Tx interface {
	// LockProducts returns the products with the given IDs, locking their
	// rows in ascending ID order. Missing IDs are omitted from the result.
	LockProducts(ctx context.Context, ids []string) ([]product.Product, error)
	// InsertOrder persists o and its items.
	InsertOrder(ctx context.Context, o *Order) error
	// DecrementStock subtracts qty from the product's stock only if enough
	// is available. It reports whether a row was updated.
	DecrementStock(ctx context.Context, productID string, qty int) (bool, error)
	// GetForUpdate returns the order with its items and locks its row, or
	// ErrNotFound.
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	// RestockItems returns the order's item quantities to product stock.
	RestockItems(ctx context.Context, id string) error
	// Delete removes the order's items and then the order. It returns
	// ErrNotFound when no order row was deleted.
	Delete(ctx context.Context, id string) error
}
