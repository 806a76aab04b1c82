// Package rediscache keeps rendered previews in Redis
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
)

const (
	keyPrefix  = "preview:"
	defaultTTL = time.Hour
)

type PreviewCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *PreviewCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &PreviewCache{client: client, ttl: ttl}
}

// NewFromConfig reads REDIS_ADDR, REDIS_PASSWORD and REDIS_TTL (a Go duration, e.g. "30m")
func NewFromConfig(cfg *config.Config) *PreviewCache {
	ttl, err := time.ParseDuration(cfg.GetString("REDIS_TTL"))
	if err != nil {
		ttl = defaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetString("REDIS_ADDR"),
		Password: cfg.GetString("REDIS_PASSWORD"),
	})

	return New(client, ttl)
}

// Get returns ok=false on a cache miss
func (c *PreviewCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}
	return data, true, nil
}

func (c *PreviewCache) Set(ctx context.Context, key string, data []byte) error {
	return c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err()
}

func (c *PreviewCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *PreviewCache) Close() error {
	if err := c.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close redis client")
		return err
	}
	return nil
}
