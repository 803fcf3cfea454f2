package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

//go:embed scripts/extend_lock.lua
var extendLockScript string

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	extendScript  *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newClient(rdb), nil
}

func newClient(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		extendScript:  redis.NewScript(extendLockScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping reports whether Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:booking:%s", key)
}

// GetIdempotentBooking returns the booking ID stored under an idempotency key.
func (c *Client) GetIdempotentBooking(ctx context.Context, key string) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt idempotency entry %q: %w", key, err)
	}
	return id, true, nil
}

// SetIdempotentBooking stores the booking ID created for an idempotency key with TTL.
// An existing entry is kept.
func (c *Client) SetIdempotentBooking(ctx context.Context, key string, bookingID int64, ttl time.Duration) error {
	return c.rdb.SetNX(ctx, idempotencyKey(key), bookingID, ttl).Err()
}

func lockKey(name string) string {
	return fmt.Sprintf("lock:%s", name)
}

// AcquireLock tries to take a distributed lock. On success it returns the owner
// token needed to release or extend it.
func (c *Client) AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock releases a lock if token still owns it.
func (c *Client) ReleaseLock(ctx context.Context, name, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{lockKey(name)}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

// ExtendLock pushes the lock expiry out by ttl. It returns false when the lock
// has already passed to another owner.
func (c *Client) ExtendLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	result, err := c.extendScript.Run(ctx, c.rdb, []string{lockKey(name)}, token, ttl.Milliseconds()).Result()
	if err != nil {
		return false, fmt.Errorf("extend lock script failed: %w", err)
	}

	extended, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}
	return extended == 1, nil
}
