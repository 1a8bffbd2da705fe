package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/storefront/internal/domain/cart"
)

const cartKeyPrefix = "shop:cart:"

var _ cart.Store = (*CartStore)(nil)

// CartStore keeps each cart in a hash of product ID to quantity. Carts
// expire ttl after their last write.
type CartStore struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewCartStore returns a CartStore using client.
func NewCartStore(client goredis.UniversalClient, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttl}
}

func (s *CartStore) Get(ctx context.Context, cartID string) (cart.Cart, error) {
	fields, err := s.client.HGetAll(ctx, cartKeyPrefix+cartID).Result()
	if err != nil {
		return cart.Cart{}, errors.Wrapf(err, "get cart %q", cartID)
	}

	c := cart.New()
	for productID, raw := range fields {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return cart.Cart{}, errors.Wrapf(err, "parse cart %q quantity of %q", cartID, productID)
		}
		c.Items[productID] = qty
	}
	return c, nil
}

// Set replaces the whole cart atomically.
func (s *CartStore) Set(ctx context.Context, cartID string, c cart.Cart) error {
	key := cartKeyPrefix + cartID
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		if c.IsEmpty() {
			return nil
		}
		values := make(map[string]any, len(c.Items))
		for productID, qty := range c.Items {
			values[productID] = qty
		}
		pipe.HSet(ctx, key, values)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "set cart %q", cartID)
	}
	return nil
}

func (s *CartStore) Clear(ctx context.Context, cartID string) error {
	if err := s.client.Del(ctx, cartKeyPrefix+cartID).Err(); err != nil {
		return errors.Wrapf(err, "clear cart %q", cartID)
	}
	return nil
}
