package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/oilclothshop/backend/internal/models"
)

// RedisConfig holds Redis cache settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and returns an image cache shared between instances
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*redisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisCache{
		client: client,
		ttl:    cfg.TTL,
	}, nil
}

func (c *redisCache) Get(ctx context.Context, id int64, version time.Time) (*models.ImageData, error) {
	raw, err := c.client.Get(ctx, imageKey(id, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached image: %w", err)
	}

	var data models.ImageData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode cached image: %w", err)
	}

	return &data, nil
}

func (c *redisCache) Set(ctx context.Context, id int64, data *models.ImageData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode image for cache: %w", err)
	}

	if err := c.client.Set(ctx, imageKey(id, data.UpdatedAt), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache image: %w", err)
	}

	return nil
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
