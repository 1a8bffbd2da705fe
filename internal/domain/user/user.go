// Package user manages customer accounts and admin user administration.
package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrAlreadyExists is returned when the username or email is taken.
	ErrAlreadyExists = errors.New("username or email already registered")
	// ErrInvalidCredentials is returned when login or password do not match.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// User is a registered account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	Address      string
	IsAdmin      bool
	CreatedAt    time.Time
}

// Repository defines persistence operations for users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	// GetByLogin finds a user by username or email.
	GetByLogin(ctx context.Context, login string) (*User, error)
	List(ctx context.Context) ([]User, error)
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
	// Delete removes the user together with their orders and order items
	// in one transaction.
	Delete(ctx context.Context, id string) error
}
