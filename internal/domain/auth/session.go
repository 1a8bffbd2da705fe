package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when no session exists for an id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when a session was idle for too long.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionInvalid is returned when the client fingerprint changed.
	ErrSessionInvalid = errors.New("session invalid")
)

// Session is the server-side state of a logged-in browser.
type Session struct {
	ID           string
	UserID       string
	Username     string
	IsAdmin      bool
	CartID       string
	CSRFToken    string
	Fingerprint  string
	CreatedAt    time.Time
	LastActivity time.Time
	// RotatedTo is set on the short-lived record left under a rotated id.
	// It names the session that replaced it.
	RotatedTo string
}

// Principal returns the caller identity carried by the session.
func (s *Session) Principal() Principal {
	return Principal{UserID: s.UserID, Username: s.Username, IsAdmin: s.IsAdmin}
}

// Store persists sessions. Save must expire the entry after ttl.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// rotationGrace is how long a rotated id keeps resolving to its
// replacement, so requests already in flight with the old cookie survive.
const rotationGrace = 30 * time.Second

// SessionConfig controls session lifetimes.
type SessionConfig struct {
	// IdleTimeout destroys sessions without activity for this long.
	IdleTimeout time.Duration
	// RotateAfter issues a fresh session id once a session is this old.
	RotateAfter time.Duration
}

// Fingerprint hashes the client attributes a session is bound to.
func Fingerprint(userAgent, clientAddr string) string {
	sum := sha256.Sum256([]byte(userAgent + clientAddr))
	return hex.EncodeToString(sum[:])
}

// Manager creates and validates sessions.
type Manager struct {
	store Store
	cfg   SessionConfig
	now   func() time.Time
}

// NewManager creates a Manager backed by store.
func NewManager(store Store, cfg SessionConfig) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Hour
	}
	if cfg.RotateAfter <= 0 {
		cfg.RotateAfter = 30 * time.Minute
	}
	return &Manager{store: store, cfg: cfg, now: time.Now}
}

// Create starts a session bound to fingerprint. The zero Principal starts
// an anonymous session that only carries a cart.
func (m *Manager) Create(ctx context.Context, p Principal, fingerprint string) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := m.now()
	s := &Session{
		ID:           uuid.New().String(),
		UserID:       p.UserID,
		Username:     p.Username,
		IsAdmin:      p.IsAdmin,
		CartID:       uuid.New().String(),
		CSRFToken:    token,
		Fingerprint:  fingerprint,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := m.store.Save(ctx, s, m.cfg.IdleTimeout); err != nil {
		return nil, errors.Wrap(err, "save session")
	}
	return s, nil
}

// Resolve loads the session id, checks its fingerprint and idle time, records
// activity, and rotates the id when the session is old enough. The returned
// session may carry a different ID than requested; the cart id is stable.
// A recently rotated id resolves to the session that replaced it.
func (m *Manager) Resolve(ctx context.Context, id, fingerprint string) (*Session, error) {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.RotatedTo != "" {
		if s, err = m.store.Load(ctx, s.RotatedTo); err != nil {
			return nil, err
		}
	}

	now := m.now()
	if s.Fingerprint != fingerprint {
		_ = m.store.Delete(ctx, s.ID)
		return nil, ErrSessionInvalid
	}
	if now.Sub(s.LastActivity) > m.cfg.IdleTimeout {
		_ = m.store.Delete(ctx, s.ID)
		return nil, ErrSessionExpired
	}

	var retired *Session
	if now.Sub(s.CreatedAt) > m.cfg.RotateAfter {
		old := *s
		old.RotatedTo = uuid.New().String()
		retired = &old

		s.ID = old.RotatedTo
		s.CreatedAt = now
	}
	s.LastActivity = now

	if err := m.store.Save(ctx, s, m.cfg.IdleTimeout); err != nil {
		return nil, errors.Wrap(err, "save session")
	}
	if retired != nil {
		// Overwrites the old record; a concurrent rotation of the same id
		// leaves both replacements valid.
		if err := m.store.Save(ctx, retired, rotationGrace); err != nil {
			return nil, errors.Wrap(err, "retire rotated session")
		}
	}
	return s, nil
}

// Elevate binds s to p after a successful login. The session gets a new ID
// and CSRF token so a pre-login ID cannot be reused; the cart is kept.
func (m *Manager) Elevate(ctx context.Context, s *Session, p Principal) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	if err := m.Destroy(ctx, s.ID); err != nil {
		return nil, err
	}

	now := m.now()
	out := *s
	out.ID = uuid.New().String()
	out.UserID, out.Username, out.IsAdmin = p.UserID, p.Username, p.IsAdmin
	out.CSRFToken = token
	out.CreatedAt = now
	out.LastActivity = now
	if err := m.store.Save(ctx, &out, m.cfg.IdleTimeout); err != nil {
		return nil, errors.Wrap(err, "save session")
	}
	return &out, nil
}

// Destroy removes the session. Missing sessions are not an error.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generate csrf token")
	}
	return hex.EncodeToString(b), nil
}
