package sequence

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyTTL = 48 * time.Hour

// raiseScript sets the key to ARGV[1] unless it already holds a larger value.
var raiseScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if current < floor then
	redis.call('SET', KEYS[1], floor, 'PX', ARGV[2])
end
return current
`)

type counterBackend interface {
	Exists(ctx context.Context, key string) (bool, error)
	RaiseTo(ctx context.Context, key string, floor int64, ttl time.Duration) error
	IncrExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisCounter keeps one INCR key per scope so every API instance shares the
// same invoice sequence. A missing key is seeded from the ledger floor, so a
// flushed Redis or a day that started on another counter never reissues a
// number.
type RedisCounter struct {
	client  *redis.Client
	backend counterBackend
	prefix  string
	floor   Floor
}

func NewRedisCounter(addr string, password string, db int, floor Floor) *RedisCounter {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCounter{
		client:  client,
		backend: redisBackend{client: client},
		prefix:  "posledger:invoice_seq:",
		floor:   floor,
	}
}

func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCounter) Close() error {
	return c.client.Close()
}

func (c *RedisCounter) Next(ctx context.Context, scope string) (int64, error) {
	key := c.prefix + scope
	exists, err := c.backend.Exists(ctx, key)
	if err != nil {
		return 0, err
	}
	if !exists {
		if err := c.Resync(ctx, scope); err != nil {
			return 0, err
		}
	}
	return c.backend.IncrExpire(ctx, key, keyTTL)
}

// Resync raises the scope's key to the ledger floor. It never lowers it.
func (c *RedisCounter) Resync(ctx context.Context, scope string) error {
	if c.floor == nil {
		return nil
	}
	last, err := c.floor(ctx, scope)
	if err != nil {
		return err
	}
	return c.backend.RaiseTo(ctx, c.prefix+scope, last, keyTTL)
}

type redisBackend struct {
	client *redis.Client
}

func (b redisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (b redisBackend) RaiseTo(ctx context.Context, key string, floor int64, ttl time.Duration) error {
	return raiseScript.Run(ctx, b.client, []string{key}, floor, ttl.Milliseconds()).Err()
}

func (b redisBackend) IncrExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := b.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
