package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/product"
)

const productColumns = `p.id, p.name, p.description, p.price, p.stock,
		COALESCE(p.category_id, ''), COALESCE(c.name, ''), p.image_url, p.featured, p.discount_percent,
		p.created_at, p.updated_at`

const (
	listProductsSQL = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE ($1::text = '' OR p.category_id = $1)
			AND ($2::text = '' OR p.name ILIKE '%' || $2 || '%' OR p.description ILIKE '%' || $2 || '%')
		ORDER BY p.name, p.id
		LIMIT NULLIF($3::int, 0) OFFSET $4`

	featuredProductsSQL = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.featured
		ORDER BY p.created_at DESC, p.id
		LIMIT $1`

	saleProductsSQL = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.discount_percent > 0
		ORDER BY p.discount_percent DESC, p.id
		LIMIT $1`

	getProductByIDSQL = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = ANY($1)
		ORDER BY p.id`

	insertProductSQL = `INSERT INTO products
		(id, name, description, price, stock, category_id, image_url, featured, discount_percent)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
		RETURNING created_at, updated_at`

	updateProductSQL = `UPDATE products SET
		name = $2, description = $3, price = $4, stock = $5,
		category_id = NULLIF($6, ''), image_url = $7, featured = $8, discount_percent = $9,
		updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var _ product.AdminRepository = (*ProductRepository)(nil)

// ProductRepository implements product.AdminRepository backed by PostgreSQL.
type ProductRepository struct {
	db DB
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(db DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns products matching f ordered by name. A zero limit returns
// every match.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, listProductsSQL, f.CategoryID, f.Search, f.Limit, f.Offset)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Featured returns up to limit featured products, newest first.
func (r *ProductRepository) Featured(ctx context.Context, limit int) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, featuredProductsSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list featured products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// OnSale returns up to limit discounted products, largest discount first.
func (r *ProductRepository) OnSale(ctx context.Context, limit int) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, saleProductsSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list sale products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.db.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts p and fills in its timestamps.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.db.QueryRow(ctx, insertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.CategoryID, p.ImageURL, p.Featured, p.DiscountPercent,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pgErrorCode(err) == codeForeignKeyViolation {
			return product.ErrCategoryNotFound
		}
		return errors.Wrapf(err, "insert product %q", p.ID)
	}
	return nil
}

// Update overwrites the editable columns of p.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	err := r.db.QueryRow(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.CategoryID, p.ImageURL, p.Featured, p.DiscountPercent,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return product.ErrNotFound
		case pgErrorCode(err) == codeForeignKeyViolation:
			return product.ErrCategoryNotFound
		}
		return errors.Wrapf(err, "update product %q", p.ID)
	}
	return nil
}

// Delete removes a product that no order item references.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		if pgErrorCode(err) == codeForeignKeyViolation {
			return product.ErrInUse
		}
		return errors.Wrapf(err, "delete product %q", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.CategoryID, &p.CategoryName, &p.ImageURL, &p.Featured, &p.DiscountPercent,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
