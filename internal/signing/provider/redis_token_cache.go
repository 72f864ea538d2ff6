package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenCache shares tokens between server instances.
type RedisTokenCache struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisTokenCache connects to redisURL and pings it.
func NewRedisTokenCache(redisURL string, logger *slog.Logger) (*RedisTokenCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisTokenCacheWithClient(client, logger), nil
}

func NewRedisTokenCacheWithClient(client *redis.Client, logger *slog.Logger) *RedisTokenCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisTokenCache{client: client, prefix: "signing:token:", logger: logger}
}

func (c *RedisTokenCache) key(k string) string { return c.prefix + k }

// Get treats Redis failures as a miss so a cache outage only costs a token fetch.
func (c *RedisTokenCache) Get(ctx context.Context, key string) (Token, bool) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Token{}, false
	}
	if err != nil {
		c.logger.Warn("token cache read failed", "key", key, "error", err)
		return Token{}, false
	}
	var t Token
	if err := json.Unmarshal(raw, &t); err != nil {
		c.logger.Warn("token cache entry unreadable", "key", key, "error", err)
		return Token{}, false
	}
	if !t.Valid(time.Now()) {
		return Token{}, false
	}
	return t, true
}

func (c *RedisTokenCache) Set(ctx context.Context, key string, t Token) error {
	ttl := time.Until(t.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := c.client.Set(ctx, c.key(key), body, ttl).Err(); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (c *RedisTokenCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("invalidate token: %w", err)
	}
	return nil
}

func (c *RedisTokenCache) Close() error {
	return c.client.Close()
}
