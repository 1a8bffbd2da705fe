package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

const orderColumns = `o.id, o.user_id, o.status, o.subtotal, o.tax, o.shipping, o.total,
		o.shipping_address, o.created_at, o.updated_at`

const (
	lockProductsSQL = `SELECT p.id, p.name, p.price, p.stock
		FROM products p
		WHERE p.id = ANY($1)
		ORDER BY p.id
		FOR UPDATE`

	insertOrderSQL = `INSERT INTO orders
		(id, user_id, status, subtotal, tax, shipping, total, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)`

	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	getOrderItemsSQL = `SELECT oi.product_id, p.name, oi.quantity, oi.unit_price
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

	restockOrderItemsSQL = `UPDATE products p SET stock = p.stock + oi.quantity, updated_at = now()
		FROM order_items oi
		WHERE oi.order_id = $1 AND p.id = oi.product_id`

	deleteOrderItemsSQL = `DELETE FROM order_items WHERE order_id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	countOrdersSQL = `SELECT COUNT(*) FROM orders o
		WHERE ($1::text = '' OR o.user_id = $1) AND ($2::text = '' OR o.status = $2)`

	listOrdersSQL = `SELECT ` + orderColumns + `, u.username, u.email,
			(SELECT COALESCE(SUM(oi.quantity), 0) FROM order_items oi WHERE oi.order_id = o.id)
		FROM orders o JOIN users u ON u.id = o.user_id
		WHERE ($1::text = '' OR o.user_id = $1) AND ($2::text = '' OR o.status = $2)
		ORDER BY o.created_at DESC, o.id
		LIMIT $3 OFFSET $4`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db DB
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(db DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithinTx runs fn in a transaction. Row locks taken through the Tx are
// held until fn returns.
func (r *OrderRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

// Get returns an order with its items.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, r.db, getOrderSQL, id)
}

// List returns one page of orders matching f, newest first, with the
// owner's username and email and the number of units ordered.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) (*order.Page, error) {
	page := &order.Page{}
	if err := r.db.QueryRow(ctx, countOrdersSQL, f.UserID, string(f.Status)).Scan(&page.Total); err != nil {
		return nil, errors.Wrap(err, "count orders")
	}

	rows, err := r.db.Query(ctx, listOrdersSQL, f.UserID, string(f.Status), f.PerPage, f.Offset())
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	page.Orders, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Order, error) {
		var o order.Order
		err := row.Scan(
			&o.ID, &o.UserID, &o.Status, &o.Subtotal, &o.Tax, &o.Shipping, &o.Total,
			&o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt,
			&o.Username, &o.Email, &o.ItemCount,
		)
		return o, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	return page, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getOrder(ctx context.Context, q querier, query, id string) (*order.Order, error) {
	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	rows, err = q.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q items", id)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice)
		return it, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan order %q items", id)
	}
	o.ItemCount = len(o.Items)
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.Status, &o.Subtotal, &o.Tax, &o.Shipping, &o.Total,
		&o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

var _ order.Tx = (*orderTx)(nil)

type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) LockProducts(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := t.tx.Query(ctx, lockProductsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "lock products")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Product, error) {
		var p product.Product
		err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock)
		return p, err
	})
}

func (t *orderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	if _, err := t.tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, string(o.Status), o.Subtotal, o.Tax, o.Shipping, o.Total,
		o.ShippingAddress, o.CreatedAt, o.UpdatedAt,
	); err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}
	for _, it := range o.Items {
		if _, err := t.tx.Exec(ctx, insertOrderItemSQL, o.ID, it.ProductID, it.Quantity, it.UnitPrice); err != nil {
			return errors.Wrapf(err, "insert order %q item %q", o.ID, it.ProductID)
		}
	}
	return nil
}

func (t *orderTx) DecrementStock(ctx context.Context, productID string, qty int) (bool, error) {
	tag, err := t.tx.Exec(ctx, decrementStockSQL, productID, qty)
	if err != nil {
		return false, errors.Wrapf(err, "decrement stock of %q", productID)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *orderTx) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, t.tx, getOrderForUpdateSQL, id)
}

func (t *orderTx) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := t.tx.Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return errors.Wrapf(err, "update order %q status", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (t *orderTx) RestockItems(ctx context.Context, id string) error {
	if _, err := t.tx.Exec(ctx, restockOrderItemsSQL, id); err != nil {
		return errors.Wrapf(err, "restock order %q items", id)
	}
	return nil
}

func (t *orderTx) Delete(ctx context.Context, id string) error {
	if _, err := t.tx.Exec(ctx, deleteOrderItemsSQL, id); err != nil {
		return errors.Wrapf(err, "delete order %q items", id)
	}
	tag, err := t.tx.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete order %q", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}
