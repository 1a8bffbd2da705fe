package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	listCategoriesSQL = `SELECT c.id, c.name, c.description, COUNT(p.id), c.created_at
		FROM categories c LEFT JOIN products p ON p.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name`

	saleCategoriesSQL = `SELECT c.id, c.name, c.description, COUNT(p.id), c.created_at
		FROM categories c JOIN products p ON p.category_id = c.id AND p.discount_percent > 0
		GROUP BY c.id
		ORDER BY COUNT(p.id) DESC, c.name
		LIMIT $1`

	insertCategorySQL = `INSERT INTO categories (id, name, description)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	updateCategorySQL = `UPDATE categories SET name = $2, description = $3
		WHERE id = $1
		RETURNING created_at`

	deleteCategorySQL = `DELETE FROM categories WHERE id = $1`
)

var _ product.CategoryRepository = (*CategoryRepository)(nil)

// CategoryRepository implements product.CategoryRepository backed by PostgreSQL.
type CategoryRepository struct {
	db DB
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(db DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns all categories with the number of products in each.
func (r *CategoryRepository) List(ctx context.Context) ([]product.Category, error) {
	rows, err := r.db.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return pgx.CollectRows(rows, scanCategory)
}

// OnSale returns up to limit categories holding discounted products, the
// ones with most discounted products first. ProductCount counts only those.
func (r *CategoryRepository) OnSale(ctx context.Context, limit int) ([]product.Category, error) {
	rows, err := r.db.Query(ctx, saleCategoriesSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list sale categories")
	}
	return pgx.CollectRows(rows, scanCategory)
}

func (r *CategoryRepository) Create(ctx context.Context, c *product.Category) error {
	err := r.db.QueryRow(ctx, insertCategorySQL, c.ID, c.Name, c.Description).Scan(&c.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return product.ErrCategoryExists
		}
		return errors.Wrapf(err, "insert category %q", c.Name)
	}
	return nil
}

// Update overwrites the name and description of c.
func (r *CategoryRepository) Update(ctx context.Context, c *product.Category) error {
	err := r.db.QueryRow(ctx, updateCategorySQL, c.ID, c.Name, c.Description).Scan(&c.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return product.ErrCategoryNotFound
		case pgErrorCode(err) == codeUniqueViolation:
			return product.ErrCategoryExists
		}
		return errors.Wrapf(err, "update category %q", c.ID)
	}
	return nil
}

// Delete removes a category no product belongs to.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteCategorySQL, id)
	if err != nil {
		if pgErrorCode(err) == codeForeignKeyViolation {
			return product.ErrCategoryInUse
		}
		return errors.Wrapf(err, "delete category %q", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrCategoryNotFound
	}
	return nil
}

func scanCategory(row pgx.CollectableRow) (product.Category, error) {
	var c product.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ProductCount, &c.CreatedAt)
	return c, err
}
