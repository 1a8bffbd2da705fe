package user

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

const minPasswordLength = 8

// Registration is the input of Register.
type Registration struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	Address         string
}

func (r *Registration) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.Address = strings.TrimSpace(r.Address)
}

func (r Registration) validate() error {
	switch {
	case r.Username == "":
		return &apperr.ValidationError{Field: "username", Message: "required"}
	case r.Email == "":
		return &apperr.ValidationError{Field: "email", Message: "required"}
	case r.Password == "":
		return &apperr.ValidationError{Field: "password", Message: "required"}
	case r.Address == "":
		return &apperr.ValidationError{Field: "address", Message: "required"}
	}
	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		return &apperr.ValidationError{Field: "email", Message: "invalid email address"}
	}
	if r.Password != r.ConfirmPassword {
		return &apperr.ValidationError{Field: "confirm_password", Message: "passwords do not match"}
	}
	if len(r.Password) < minPasswordLength {
		return &apperr.ValidationError{Field: "password", Message: "must be at least 8 characters"}
	}
	return nil
}

// Service implements registration, login and user administration.
type Service struct {
	users Repository
	cost  int
	now   func() time.Time
}

// NewService creates a user Service hashing passwords with the given bcrypt
// cost. A cost of zero selects bcrypt.DefaultCost.
func NewService(users Repository, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{users: users, cost: cost, now: time.Now}
}

// Register creates a non-admin account.
func (s *Service) Register(ctx context.Context, r Registration) (*User, error) {
	r.normalize()
	if err := r.validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	u := &User{
		ID:           uuid.New().String(),
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: hash,
		Address:      r.Address,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}
		return nil, apperr.Persistence("create user", err)
	}
	return u, nil
}

// Authenticate checks the password of the user identified by username or
// email. Unknown users and wrong passwords yield the same error.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, apperr.Persistence("get user", err)
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &apperr.NotFoundError{Entity: "user", ID: id}
		}
		return nil, apperr.Persistence("get user", err)
	}
	return u, nil
}

// List returns every user. Admin only.
func (s *Service) List(ctx context.Context, p auth.Principal) ([]User, error) {
	if !p.IsAdmin {
		return nil, &apperr.UnauthorizedError{Reason: "admin required"}
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperr.Persistence("list users", err)
	}
	return users, nil
}

// ToggleAdmin flips the admin flag of another user.
func (s *Service) ToggleAdmin(ctx context.Context, p auth.Principal, id string) (*User, error) {
	if err := requireOtherAdmin(p, id); err != nil {
		return nil, err
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetAdmin(ctx, id, !u.IsAdmin); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &apperr.NotFoundError{Entity: "user", ID: id}
		}
		return nil, apperr.Persistence("set admin", err)
	}
	u.IsAdmin = !u.IsAdmin
	return u, nil
}

// Delete removes another user along with their orders.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id string) error {
	if err := requireOtherAdmin(p, id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &apperr.NotFoundError{Entity: "user", ID: id}
		}
		return apperr.Persistence("delete user", err)
	}
	return nil
}

func requireOtherAdmin(p auth.Principal, id string) error {
	if !p.IsAdmin {
		return &apperr.UnauthorizedError{Reason: "admin required"}
	}
	if p.UserID == id {
		return &apperr.UnauthorizedError{Reason: "cannot modify own account"}
	}
	return nil
}
