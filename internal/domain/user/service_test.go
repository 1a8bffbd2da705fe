package user

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

// --- Mock implementations ---

type memRepo struct {
	byID      map[string]*User
	createErr error
	deleted   []string
}

func newMemRepo() *memRepo { return &memRepo{byID: map[string]*User{}} }

func (m *memRepo) Create(_ context.Context, u *User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.byID {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrAlreadyExists
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) GetByLogin(_ context.Context, login string) (*User, error) {
	for _, u := range m.byID {
		if u.Username == login || u.Email == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) List(context.Context) ([]User, error) {
	out := make([]User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memRepo) SetAdmin(_ context.Context, id string, isAdmin bool) error {
	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.IsAdmin = isAdmin
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// --- Helpers ---

func validRegistration() Registration {
	return Registration{
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        "correct horse",
		ConfirmPassword: "correct horse",
		Address:         "1 Main St",
	}
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, bcrypt.MinCost), repo
}

// --- Tests ---

func TestRegister(t *testing.T) {
	svc, repo := newTestService()

	u, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	assert.False(t, u.IsAdmin)
	assert.NotEmpty(t, u.ID)
	require.NoError(t, bcrypt.CompareHashAndPassword(repo.byID[u.ID].PasswordHash, []byte("correct horse")))
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *Registration)
		field  string
	}{
		{"missing username", func(r *Registration) { r.Username = "  " }, "username"},
		{"missing email", func(r *Registration) { r.Email = "" }, "email"},
		{"missing address", func(r *Registration) { r.Address = "" }, "address"},
		{"bad email", func(r *Registration) { r.Email = "not-an-email" }, "email"},
		{"display name email", func(r *Registration) { r.Email = "Alice <alice@example.com>" }, "email"},
		{"mismatch", func(r *Registration) { r.ConfirmPassword = "something else" }, "confirm_password"},
		{"short", func(r *Registration) { r.Password, r.ConfirmPassword = "short", "short" }, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			r := validRegistration()
			tt.modify(&r)

			_, err := svc.Register(context.Background(), r)
			var vErr *apperr.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Empty(t, repo.byID)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	r := validRegistration()
	r.Username = "alice2"
	_, err = svc.Register(context.Background(), r)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestRegister_StorageError(t *testing.T) {
	svc, repo := newTestService()
	repo.createErr = errors.New("connection refused")

	_, err := svc.Register(context.Background(), validRegistration())
	var pErr *apperr.PersistenceError
	require.ErrorAs(t, err, &pErr)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService()
	created, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	for _, login := range []string{"alice", "alice@example.com"} {
		u, err := svc.Authenticate(context.Background(), login, "correct horse")
		require.NoError(t, err, login)
		assert.Equal(t, created.ID, u.ID)
	}

	_, err = svc.Authenticate(context.Background(), "alice", "wrong password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(context.Background(), "nobody", "correct horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestToggleAdmin(t *testing.T) {
	svc, repo := newTestService()
	repo.byID["u1"] = &User{ID: "u1", Username: "bob"}
	admin := auth.Principal{UserID: "root", IsAdmin: true}

	u, err := svc.ToggleAdmin(context.Background(), admin, "u1")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	assert.True(t, repo.byID["u1"].IsAdmin)

	u, err = svc.ToggleAdmin(context.Background(), admin, "u1")
	require.NoError(t, err)
	assert.False(t, u.IsAdmin)
}

func TestToggleAdmin_Rejections(t *testing.T) {
	svc, repo := newTestService()
	repo.byID["u1"] = &User{ID: "u1", IsAdmin: true}

	var authErr *apperr.UnauthorizedError
	_, err := svc.ToggleAdmin(context.Background(), auth.Principal{UserID: "u2"}, "u1")
	require.ErrorAs(t, err, &authErr)

	_, err = svc.ToggleAdmin(context.Background(), auth.Principal{UserID: "u1", IsAdmin: true}, "u1")
	require.ErrorAs(t, err, &authErr)
	assert.True(t, repo.byID["u1"].IsAdmin)

	var nfErr *apperr.NotFoundError
	_, err = svc.ToggleAdmin(context.Background(), auth.Principal{UserID: "u1", IsAdmin: true}, "ghost")
	require.ErrorAs(t, err, &nfErr)
}

func TestDelete(t *testing.T) {
	svc, repo := newTestService()
	repo.byID["u1"] = &User{ID: "u1"}
	admin := auth.Principal{UserID: "root", IsAdmin: true}

	var authErr *apperr.UnauthorizedError
	require.ErrorAs(t, svc.Delete(context.Background(), admin, "root"), &authErr)

	require.NoError(t, svc.Delete(context.Background(), admin, "u1"))
	assert.Equal(t, []string{"u1"}, repo.deleted)

	var nfErr *apperr.NotFoundError
	require.ErrorAs(t, svc.Delete(context.Background(), admin, "u1"), &nfErr)
}

func TestList_AdminOnly(t *testing.T) {
	svc, repo := newTestService()
	repo.byID["u1"] = &User{ID: "u1"}

	var authErr *apperr.UnauthorizedError
	_, err := svc.List(context.Background(), auth.Principal{UserID: "u1"})
	require.ErrorAs(t, err, &authErr)

	users, err := svc.List(context.Background(), auth.Principal{UserID: "root", IsAdmin: true})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
