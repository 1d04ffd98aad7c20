package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript increments the window counter and sets a block key once the
// limit is exceeded. Returns {allowed, retry_after_ms}.
var hitScript = redis.NewScript(`
local blocked = redis.call("PTTL", KEYS[2])
if blocked > 0 then
	return {0, blocked}
end
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if n > tonumber(ARGV[1]) then
	redis.call("SET", KEYS[2], "1", "PX", ARGV[3])
	redis.call("DEL", KEYS[1])
	return {0, tonumber(ARGV[3])}
end
return {1, 0}
`)

// RedisBackend shares counters across instances through Redis.
type RedisBackend struct {
	client redis.Scripter
	prefix string
}

// NewRedisBackend creates a Redis backend. Keys are namespaced by prefix.
func NewRedisBackend(client redis.Scripter, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) Hit(ctx context.Context, b Bucket, key string) (Decision, error) {
	countKey := r.prefix + b.Name + ":" + key
	blockKey := r.prefix + "block:" + b.Name + ":" + key

	res, err := hitScript.Run(ctx, r.client,
		[]string{countKey, blockKey},
		b.Requests, b.Window.Milliseconds(), b.Block.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis hit: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script result %v", res)
	}
	if res[0] == 1 {
		return Decision{Allowed: true}, nil
	}
	return Decision{RetryAfter: time.Duration(res[1]) * time.Millisecond}, nil
}

var _ Backend = (*RedisBackend)(nil)
