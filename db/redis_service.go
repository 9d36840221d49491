package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"rollcall-server/auth"
	"rollcall-server/internal/logger"
)

const loginFailuresPrefix = "login:failures:" // String prefix: login:failures:{username} -> failed attempt count

// RedisOptions configures the shared Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// InitializeRedisClient creates a Redis client and checks the connection.
func InitializeRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// RedisThrottle is the auth.Throttle shared by every server instance behind
// one Redis.
type RedisThrottle struct {
	Client      *redis.Client
	MaxAttempts int
	Window      time.Duration
	logger      *slog.Logger
}

var _ auth.Throttle = (*RedisThrottle)(nil)

func NewRedisThrottle(client *redis.Client, maxAttempts int, window time.Duration, log *slog.Logger) *RedisThrottle {
	return &RedisThrottle{
		Client:      client,
		MaxAttempts: maxAttempts,
		Window:      window,
		logger:      logger.Resolve(log),
	}
}

func getLoginFailuresKey(username string) string {
	return loginFailuresPrefix + auth.ThrottleKey(username)
}

func (t *RedisThrottle) Allow(ctx context.Context, username string) (bool, error) {
	if t.MaxAttempts <= 0 {
		return true, nil
	}
	count, err := t.Client.Get(ctx, getLoginFailuresKey(username)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, nil
		}
		return false, fmt.Errorf("read login failures: %w", err)
	}
	return count < t.MaxAttempts, nil
}

// Fail increments the counter. Any counter without a TTL gets the lockout
// window, so a lost EXPIRE never locks a username out for good.
func (t *RedisThrottle) Fail(ctx context.Context, username string) error {
	if t.MaxAttempts <= 0 {
		return nil
	}
	key := getLoginFailuresKey(username)
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := t.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	count := incr.Val()
	if ttl.Val() < 0 {
		if err := t.Client.Expire(ctx, key, t.Window).Err(); err != nil {
			return fmt.Errorf("set lockout window: %w", err)
		}
	}
	if count == int64(t.MaxAttempts) {
		t.logger.Warn("login locked out", "username", auth.ThrottleKey(username), "window", t.Window.String())
	}
	return nil
}

func (t *RedisThrottle) Reset(ctx context.Context, username string) error {
	if err := t.Client.Del(ctx, getLoginFailuresKey(username)).Err(); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}
