package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces handoff keys
const DefaultRedisPrefix = "huskytrace:handoff:"

// RedisSlots keeps slots in Redis, for front-ends that run on several hosts
type RedisSlots struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSlots wraps client. Keys expire after ttl; zero means never.
func NewRedisSlots(client *redis.Client, prefix string, ttl time.Duration) *RedisSlots {
	return &RedisSlots{client: client, prefix: prefix, ttl: ttl}
}

// unlockScript deletes the lease only while it still names the owner
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *RedisSlots) key(session, slot string) string {
	return r.prefix + session + ":" + slot
}

func (r *RedisSlots) leaseKey(session string) string {
	return r.prefix + session + ":lease"
}

func (r *RedisSlots) Get(ctx context.Context, session, slot string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.key(session, slot)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

func (r *RedisSlots) Set(ctx context.Context, session, slot string, value []byte) error {
	if err := r.client.Set(ctx, r.key(session, slot), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisSlots) SetAll(ctx context.Context, session string, values map[string][]byte) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for slot, value := range values {
			pipe.Set(ctx, r.key(session, slot), value, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis multi set: %w", err)
	}
	return nil
}

func (r *RedisSlots) Delete(ctx context.Context, session string, slots ...string) error {
	if len(slots) == 0 {
		return nil
	}
	keys := make([]string, 0, len(slots))
	for _, slot := range slots {
		keys = append(keys, r.key(session, slot))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisSlots) Lock(ctx context.Context, session, owner string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.leaseKey(session), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (r *RedisSlots) Unlock(ctx context.Context, session, owner string) error {
	if err := unlockScript.Run(ctx, r.client, []string{r.leaseKey(session)}, owner).Err(); err != nil {
		return fmt.Errorf("redis unlock: %w", err)
	}
	return nil
}

func (r *RedisSlots) Close() error {
	return r.client.Close()
}
