package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInUse is returned when a product is still referenced by order items.
	ErrInUse = errors.New("product is referenced by orders")
	// ErrCategoryNotFound is returned when a category does not exist.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrCategoryInUse is returned when deleting a category that still has products.
	ErrCategoryInUse = errors.New("category has products")
	// ErrCategoryExists is returned when a category name is already taken.
	ErrCategoryExists = errors.New("category already exists")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID              string
	Name            string
	Description     string
	Price           decimal.Decimal
	Stock           int
	CategoryID      string
	CategoryName    string
	ImageURL        string
	Featured        bool
	DiscountPercent int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InStock reports whether at least qty units are available.
func (p Product) InStock(qty int) bool {
	return qty > 0 && p.Stock >= qty
}

// OnSale reports whether the product carries a discount.
func (p Product) OnSale() bool {
	return p.DiscountPercent > 0
}

// SalePrice is the discounted price rounded to cents. Checkout charges the
// regular Price; the sale price is advertised only.
func (p Product) SalePrice() decimal.Decimal {
	if !p.OnSale() {
		return p.Price
	}
	keep := decimal.NewFromInt(int64(100 - p.DiscountPercent))
	return p.Price.Mul(keep).Div(decimal.NewFromInt(100)).Round(2)
}

// Category groups products for browsing.
type Category struct {
	ID           string
	Name         string
	Description  string
	ProductCount int
	CreatedAt    time.Time
}

// Sale is the sale page: discounted products, largest discount first, and
// the categories holding them. ProductCount of a sale category counts only
// discounted products.
type Sale struct {
	Products   []Product
	Categories []Category
}

// Filter narrows product listings. Zero values mean "no constraint".
type Filter struct {
	CategoryID string
	Search     string
	Limit      int
	Offset     int
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	Featured(ctx context.Context, limit int) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	OnSale(ctx context.Context, limit int) ([]Product, error)
}

// AdminRepository adds inventory mutations used by the back office.
type AdminRepository interface {
	Repository
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}

// CategoryRepository manages product categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	OnSale(ctx context.Context, limit int) ([]Category, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id string) error
}
