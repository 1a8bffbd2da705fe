package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/user"
)

const userColumns = `id, username, email, password_hash, address, is_admin, created_at`

const (
	insertUserSQL = `INSERT INTO users (id, username, email, password_hash, address, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	getUserByLoginSQL = `SELECT ` + userColumns + ` FROM users
		WHERE username = $1 OR lower(email) = lower($1)
		ORDER BY username = $1 DESC
		LIMIT 1`

	listUsersSQL = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id`

	setUserAdminSQL = `UPDATE users SET is_admin = $2 WHERE id = $1`

	deleteUserOrderItemsSQL = `DELETE FROM order_items
		WHERE order_id IN (SELECT id FROM orders WHERE user_id = $1)`

	deleteUserOrdersSQL = `DELETE FROM orders WHERE user_id = $1`

	deleteUserSQL = `DELETE FROM users WHERE id = $1`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.db.Exec(ctx, insertUserSQL,
		u.ID, u.Username, u.Email, string(u.PasswordHash), u.Address, u.IsAdmin, u.CreatedAt,
	)
	if err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return user.ErrAlreadyExists
		}
		return errors.Wrapf(err, "insert user %q", u.Username)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

// GetByLogin matches the username exactly or the email case-insensitively,
// preferring a username match.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*user.User, error) {
	return r.getOne(ctx, getUserByLoginSQL, login)
}

func (r *UserRepository) List(ctx context.Context) ([]user.User, error) {
	rows, err := r.db.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return pgx.CollectRows(rows, scanUser)
}

func (r *UserRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	tag, err := r.db.Exec(ctx, setUserAdminSQL, id, isAdmin)
	if err != nil {
		return errors.Wrapf(err, "set admin flag of %q", id)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// Delete removes the user's order items, their orders and then the user in
// one transaction.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteUserOrderItemsSQL, id); err != nil {
			return errors.Wrap(err, "delete order items")
		}
		if _, err := tx.Exec(ctx, deleteUserOrdersSQL, id); err != nil {
			return errors.Wrap(err, "delete orders")
		}
		tag, err := tx.Exec(ctx, deleteUserSQL, id)
		if err != nil {
			return errors.Wrapf(err, "delete user %q", id)
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}

func (r *UserRepository) getOne(ctx context.Context, query, arg string) (*user.User, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u    user.User
		hash string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &hash, &u.Address, &u.IsAdmin, &u.CreatedAt)
	u.PasswordHash = []byte(hash)
	return u, err
}
