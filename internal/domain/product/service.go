package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	featuredLimit   = 8
	saleLimit       = 12
	saleCategories  = 4
)

// Input carries the editable fields of a product.
type Input struct {
	Name            string
	Description     string
	Price           decimal.Decimal
	Stock           int
	CategoryID      string
	ImageURL        string
	Featured        bool
	DiscountPercent int
}

func (in Input) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return &apperr.ValidationError{Field: "name", Message: "required"}
	case in.Price.IsNegative():
		return &apperr.ValidationError{Field: "price", Message: "must not be negative"}
	case in.Stock < 0:
		return &apperr.ValidationError{Field: "stock", Message: "must not be negative"}
	case in.DiscountPercent < 0 || in.DiscountPercent > 100:
		return &apperr.ValidationError{Field: "discount_percent", Message: "must be between 0 and 100"}
	}
	return nil
}

// Service exposes catalog browsing and inventory administration.
type Service struct {
	products   AdminRepository
	categories CategoryRepository
}

// NewService creates a catalog Service.
func NewService(products AdminRepository, categories CategoryRepository) *Service {
	return &Service{products: products, categories: categories}
}

// List returns a page of products matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Product, error) {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Search = strings.TrimSpace(f.Search)

	products, err := s.products.List(ctx, f)
	if err != nil {
		return nil, apperr.Persistence("list products", err)
	}
	return products, nil
}

// Featured returns the products highlighted on the storefront front page.
func (s *Service) Featured(ctx context.Context) ([]Product, error) {
	products, err := s.products.Featured(ctx, featuredLimit)
	if err != nil {
		return nil, apperr.Persistence("list featured products", err)
	}
	return products, nil
}

// Sale returns the discounted products and the categories that hold them.
func (s *Service) Sale(ctx context.Context) (*Sale, error) {
	products, err := s.products.OnSale(ctx, saleLimit)
	if err != nil {
		return nil, apperr.Persistence("list sale products", err)
	}
	categories, err := s.categories.OnSale(ctx, saleCategories)
	if err != nil {
		return nil, apperr.Persistence("list sale categories", err)
	}
	return &Sale{Products: products, Categories: categories}, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &apperr.NotFoundError{Entity: "product", ID: id}
		}
		return nil, apperr.Persistence("get product", err)
	}
	return p, nil
}

// Categories lists all categories with their product counts.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, apperr.Persistence("list categories", err)
	}
	return categories, nil
}

// Create adds a product to the catalog. Admin only.
func (s *Service) Create(ctx context.Context, p auth.Principal, in Input) (*Product, error) {
	if !p.IsAdmin {
		return nil, &apperr.UnauthorizedError{Reason: "admin required"}
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	prod := &Product{ID: uuid.New().String()}
	in.apply(prod)
	if err := s.products.Create(ctx, prod); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return nil, &apperr.NotFoundError{Entity: "category", ID: in.CategoryID}
		}
		return nil, apperr.Persistence("create product", err)
	}
	return prod, nil
}

// Update replaces the editable fields of a product. Admin only.
func (s *Service) Update(ctx context.Context, p auth.Principal, id string, in Input) (*Product, error) {
	if !p.IsAdmin {
		return nil, &apperr.UnauthorizedError{Reason: "admin required"}
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	prod := &Product{ID: id}
	in.apply(prod)
	if err := s.products.Update(ctx, prod); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, &apperr.NotFoundError{Entity: "product", ID: id}
		case errors.Is(err, ErrCategoryNotFound):
			return nil, &apperr.NotFoundError{Entity: "category", ID: in.CategoryID}
		}
		return nil, apperr.Persistence("update product", err)
	}
	return prod, nil
}

// Delete removes a product. Products already sold cannot be deleted. Admin only.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id string) error {
	if !p.IsAdmin {
		return &apperr.UnauthorizedError{Reason: "admin required"}
	}
	if err := s.products.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return &apperr.NotFoundError{Entity: "product", ID: id}
		case errors.Is(err, ErrInUse):
			return err
		}
		return apperr.Persistence("delete product", err)
	}
	return nil
}

// Export returns every product for the CSV export. Admin only.
func (s *Service) Export(ctx context.Context, p auth.Principal) ([]Product, error) {
	if !p.IsAdmin {
		return nil, &apperr.UnauthorizedError{Reason: "admin required"}
	}
	products, err := s.products.List(ctx, Filter{})
	if err != nil {
		return nil, apperr.Persistence("export products", err)
	}
	return products, nil
}

// CreateCategory adds a category. Admin only.
func (s *Service) CreateCategory(ctx context.Context, p auth.Principal, name, description string) (*Category, error) {
	if !p.IsAdmin {
		return nil, &apperr.UnauthorizedError{Reason: "admin required"}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &apperr.ValidationError{Field: "name", Message: "required"}
	}

	c := &Category{ID: uuid.New().String(), Name: name, Description: strings.TrimSpace(description)}
	if err := s.categories.Create(ctx, c); err != nil {
		if errors.Is(err, ErrCategoryExists) {
			return nil, err
		}
		return nil, apperr.Persistence("create category", err)
	}
	return c, nil
}

// UpdateCategory renames a category or changes its description. Admin only.
func (s *Service) UpdateCategory(ctx context.Context, p auth.Principal, id, name, description string) (*Category, error) {
	if !p.IsAdmin {
		return nil, &apperr.UnauthorizedError{Reason: "admin required"}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &apperr.ValidationError{Field: "name", Message: "required"}
	}

	c := &Category{ID: id, Name: name, Description: strings.TrimSpace(description)}
	if err := s.categories.Update(ctx, c); err != nil {
		switch {
		case errors.Is(err, ErrCategoryNotFound):
			return nil, &apperr.NotFoundError{Entity: "category", ID: id}
		case errors.Is(err, ErrCategoryExists):
			return nil, err
		}
		return nil, apperr.Persistence("update category", err)
	}
	return c, nil
}

// DeleteCategory removes an empty category. Admin only.
func (s *Service) DeleteCategory(ctx context.Context, p auth.Principal, id string) error {
	if !p.IsAdmin {
		return &apperr.UnauthorizedError{Reason: "admin required"}
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, ErrCategoryNotFound):
			return &apperr.NotFoundError{Entity: "category", ID: id}
		case errors.Is(err, ErrCategoryInUse):
			return err
		}
		return apperr.Persistence("delete category", err)
	}
	return nil
}

func (in Input) apply(p *Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = strings.TrimSpace(in.Description)
	p.Price = in.Price.Round(2)
	p.Stock = in.Stock
	p.CategoryID = in.CategoryID
	p.ImageURL = in.ImageURL
	p.Featured = in.Featured
	p.DiscountPercent = in.DiscountPercent
}
