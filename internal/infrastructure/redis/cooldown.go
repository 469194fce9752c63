package redisinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-auth-flow/internal/config"
	"github.com/redis/go-redis/v9"
)

var ErrCooldownUnavailable = errors.New("otp cooldown unavailable")

// NewClient connects to the Redis instance configured in cfg and pings it.
func NewClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// OTPCooldown limits how often an OTP may be issued for the same
// (user, type) pair. One key per pair lives for the cooldown window.
type OTPCooldown struct {
	redis  redis.UniversalClient
	prefix string
	window time.Duration
}

func NewOTPCooldown(redisClient redis.UniversalClient, prefix string, window time.Duration) *OTPCooldown {
	if prefix == "" {
		prefix = "authflow"
	}
	return &OTPCooldown{redis: redisClient, prefix: prefix, window: window}
}

// Acquire starts the window for key. It returns false and the time left when a
// window is already running.
func (c *OTPCooldown) Acquire(ctx context.Context, key string) (bool, time.Duration, error) {
	k := c.key(key)
	ok, err := c.redis.SetNX(ctx, k, 1, c.window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrCooldownUnavailable, err)
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := c.redis.TTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrCooldownUnavailable, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return false, ttl, nil
}

// Release ends the window for key early. Used when delivering the OTP failed.
func (c *OTPCooldown) Release(ctx context.Context, key string) error {
	if err := c.redis.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCooldownUnavailable, err)
	}
	return nil
}

func (c *OTPCooldown) key(k string) string {
	return c.prefix + ":otp:cooldown:" + k
}
