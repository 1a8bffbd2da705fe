package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	sessions map[string]Session
	ttls     map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]Session{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Load(_ context.Context, id string) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *memStore) Save(_ context.Context, s *Session, ttl time.Duration) error {
	m.sessions[s.ID] = *s
	m.ttls[s.ID] = ttl
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestManager(store Store) (*Manager, *clock) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(store, SessionConfig{IdleTimeout: time.Hour, RotateAfter: 30 * time.Minute})
	m.now = c.now
	return m, c
}

var alice = Principal{UserID: "u1", Username: "alice"}

func TestFingerprint_Stable(t *testing.T) {
	a := Fingerprint("Mozilla/5.0", "10.0.0.1")
	b := Fingerprint("Mozilla/5.0", "10.0.0.1")
	c := Fingerprint("Mozilla/5.0", "10.0.0.2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestManager_CreateAndResolve(t *testing.T) {
	store := newMemStore()
	m, c := newTestManager(store)
	ctx := context.Background()

	s, err := m.Create(ctx, alice, "fp")
	require.NoError(t, err)
	assert.NotEmpty(t, s.CartID)
	assert.Len(t, s.CSRFToken, 64)
	assert.Equal(t, time.Hour, store.ttls[s.ID])

	c.t = c.t.Add(10 * time.Minute)
	got, err := m.Resolve(ctx, s.ID, "fp")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, alice, got.Principal())
	assert.Equal(t, c.t, got.LastActivity)
}

func TestManager_FingerprintMismatchDestroys(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(store)
	ctx := context.Background()

	s, err := m.Create(ctx, alice, "fp")
	require.NoError(t, err)

	_, err = m.Resolve(ctx, s.ID, "other")
	require.ErrorIs(t, err, ErrSessionInvalid)
	assert.NotContains(t, store.sessions, s.ID)
}

func TestManager_IdleTimeout(t *testing.T) {
	store := newMemStore()
	m, c := newTestManager(store)
	ctx := context.Background()

	s, err := m.Create(ctx, alice, "fp")
	require.NoError(t, err)

	c.t = c.t.Add(61 * time.Minute)
	_, err = m.Resolve(ctx, s.ID, "fp")
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.NotContains(t, store.sessions, s.ID)
}

func TestManager_RotatesKeepingCart(t *testing.T) {
	store := newMemStore()
	m, c := newTestManager(store)
	ctx := context.Background()

	s, err := m.Create(ctx, alice, "fp")
	require.NoError(t, err)

	// Stay active so the idle timeout never fires.
	c.t = c.t.Add(20 * time.Minute)
	_, err = m.Resolve(ctx, s.ID, "fp")
	require.NoError(t, err)

	c.t = c.t.Add(20 * time.Minute)
	rotated, err := m.Resolve(ctx, s.ID, "fp")
	require.NoError(t, err)

	assert.NotEqual(t, s.ID, rotated.ID)
	assert.Equal(t, s.CartID, rotated.CartID)
	assert.Contains(t, store.sessions, rotated.ID)
	assert.Empty(t, rotated.RotatedTo)

	retired := store.sessions[s.ID]
	assert.Equal(t, rotated.ID, retired.RotatedTo)
	assert.Equal(t, rotationGrace, store.ttls[s.ID])
}

func TestManager_RotatedIDFollowsReplacement(t *testing.T) {
	store := newMemStore()
	m, c := newTestManager(store)
	ctx := context.Background()

	s, err := m.Create(ctx, alice, "fp")
	require.NoError(t, err)

	c.t = c.t.Add(31 * time.Minute)
	rotated, err := m.Resolve(ctx, s.ID, "fp")
	require.NoError(t, err)
	require.NotEqual(t, s.ID, rotated.ID)

	// A request sent with the old cookie before the new one arrived.
	c.t = c.t.Add(time.Second)
	late, err := m.Resolve(ctx, s.ID, "fp")
	require.NoError(t, err)
	assert.Equal(t, rotated.ID, late.ID)
	assert.Equal(t, s.CartID, late.CartID)
	assert.Equal(t, alice, late.Principal())

	_, err = m.Resolve(ctx, s.ID, "other-fp")
	require.ErrorIs(t, err, ErrSessionInvalid)
}

// staleStore serves the same snapshot of one session on every Load, as two
// requests that loaded it before either saved would see.
type staleStore struct {
	*memStore
	id       string
	snapshot Session
}

func (s *staleStore) Load(ctx context.Context, id string) (*Session, error) {
	if id == s.id {
		cp := s.snapshot
		return &cp, nil
	}
	return s.memStore.Load(ctx, id)
}

func TestManager_ConcurrentRotationKeepsBothSessions(t *testing.T) {
	mem := newMemStore()
	m, c := newTestManager(mem)
	ctx := context.Background()

	s, err := m.Create(ctx, alice, "fp")
	require.NoError(t, err)

	stale := &staleStore{memStore: mem, id: s.ID, snapshot: *s}
	m.store = stale
	c.t = c.t.Add(31 * time.Minute)

	first, err := m.Resolve(ctx, s.ID, "fp")
	require.NoError(t, err)
	second, err := m.Resolve(ctx, s.ID, "fp")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	for _, id := range []string{first.ID, second.ID} {
		got, err := m.Resolve(ctx, id, "fp")
		require.NoError(t, err, "session %s", id)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, s.CartID, got.CartID)
	}
}

func TestManager_Destroy(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(store)
	ctx := context.Background()

	s, err := m.Create(ctx, alice, "fp")
	require.NoError(t, err)

	require.NoError(t, m.Destroy(ctx, s.ID))
	require.NoError(t, m.Destroy(ctx, s.ID))

	_, err = m.Resolve(ctx, s.ID, "fp")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPrincipalContext(t *testing.T) {
	ctx := WithPrincipal(context.Background(), alice)
	assert.Equal(t, alice, PrincipalFrom(ctx))
	assert.False(t, PrincipalFrom(context.Background()).Authenticated())
}

func TestManager_ElevateAnonymousSession(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(store)
	ctx := context.Background()

	anon, err := m.Create(ctx, Principal{}, "fp")
	require.NoError(t, err)
	assert.False(t, anon.Principal().Authenticated())

	s, err := m.Elevate(ctx, anon, alice)
	require.NoError(t, err)
	assert.NotEqual(t, anon.ID, s.ID)
	assert.NotEqual(t, anon.CSRFToken, s.CSRFToken)
	assert.Equal(t, anon.CartID, s.CartID)
	assert.Equal(t, alice, s.Principal())
	assert.NotContains(t, store.sessions, anon.ID)
}
