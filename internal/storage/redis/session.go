package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/storefront/internal/domain/auth"
)

const sessionKeyPrefix = "shop:session:"

var _ auth.Store = (*SessionStore)(nil)

// SessionStore keeps sessions as Redis hashes.
type SessionStore struct {
	client goredis.UniversalClient
}

// NewSessionStore returns a SessionStore using client.
func NewSessionStore(client goredis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Load(ctx context.Context, id string) (*auth.Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	if len(fields) == 0 {
		return nil, auth.ErrSessionNotFound
	}

	sess := &auth.Session{
		ID:          id,
		UserID:      fields["user_id"],
		Username:    fields["username"],
		IsAdmin:     fields["is_admin"] == "1",
		CartID:      fields["cart_id"],
		CSRFToken:   fields["csrf_token"],
		Fingerprint: fields["fingerprint"],
		RotatedTo:   fields["rotated_to"],
	}
	if sess.CreatedAt, err = parseUnixNano(fields["created_at"]); err != nil {
		return nil, errors.Wrap(err, "parse created_at")
	}
	if sess.LastActivity, err = parseUnixNano(fields["last_activity"]); err != nil {
		return nil, errors.Wrap(err, "parse last_activity")
	}
	return sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *auth.Session, ttl time.Duration) error {
	key := sessionKeyPrefix + sess.ID
	isAdmin := "0"
	if sess.IsAdmin {
		isAdmin = "1"
	}
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"user_id":       sess.UserID,
			"username":      sess.Username,
			"is_admin":      isAdmin,
			"cart_id":       sess.CartID,
			"csrf_token":    sess.CSRFToken,
			"fingerprint":   sess.Fingerprint,
			"rotated_to":    sess.RotatedTo,
			"created_at":    strconv.FormatInt(sess.CreatedAt.UnixNano(), 10),
			"last_activity": strconv.FormatInt(sess.LastActivity.UnixNano(), 10),
		})
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "save session")
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return errors.Wrap(err, "delete session")
	}
	if n == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

func parseUnixNano(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n), nil
}
