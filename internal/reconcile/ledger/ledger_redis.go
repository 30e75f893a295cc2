package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "dataspace:ledger:"

// Redis keeps the ledger in Redis. Entries carry no TTL: a correlation key
// must stay deduplicated for as long as the agent may redeliver.
type Redis struct {
	client *goredis.Client
}

var _ Ledger = (*Redis)(nil)

func NewRedis(client *goredis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Last(ctx context.Context, key string) (int, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("ledger get: %w", err)
	}
	ordinal, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("ledger parse ordinal: %w", err)
	}
	return ordinal, nil
}

func (r *Redis) Advance(ctx context.Context, key string, ordinal int) error {
	// MAX keeps a lagging writer from rewinding the ledger.
	script := goredis.NewScript(`
		local current = tonumber(redis.call('GET', KEYS[1]) or '0')
		local next = tonumber(ARGV[1])
		if next > current then
			redis.call('SET', KEYS[1], next)
		end
		return 0
	`)
	if err := script.Run(ctx, r.client, []string{redisKeyPrefix + key}, ordinal).Err(); err != nil {
		return fmt.Errorf("ledger advance: %w", err)
	}
	return nil
}
