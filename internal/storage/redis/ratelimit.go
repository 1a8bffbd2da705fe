package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"
)

const rateKeyPrefix = "shop:rate:"

// RateCounter counts requests per key in fixed windows.
type RateCounter struct {
	client goredis.UniversalClient
}

// NewRateCounter returns a RateCounter using client.
func NewRateCounter(client goredis.UniversalClient) *RateCounter {
	return &RateCounter{client: client}
}

// Incr increments the counter of key for the current window and returns
// the new count. The first hit of a window sets its expiry.
func (c *RateCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	windowStart := time.Now().Truncate(window).Unix()
	fullKey := rateKeyPrefix + key + ":" + strconv.FormatInt(windowStart, 10)

	var incr *goredis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, fullKey)
		pipe.ExpireNX(ctx, fullKey, window)
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "increment rate counter")
	}
	return incr.Val(), nil
}
