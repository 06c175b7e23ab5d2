package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/oilclothshop/backend/internal/models"
)

// RistrettoConfig holds in-memory cache settings
type RistrettoConfig struct {
	// MaxBytes bounds the total size of cached payloads
	MaxBytes int64
	TTL      time.Duration
}

type ristrettoCache struct {
	client *ristretto.Cache
	ttl    time.Duration
}

// NewRistrettoCache creates an in-process image cache bounded by payload size
func NewRistrettoCache(cfg RistrettoConfig) (*ristrettoCache, error) {
	if cfg.MaxBytes <= 0 {
		return nil, fmt.Errorf("invalid cache size: %d", cfg.MaxBytes)
	}

	client, err := ristretto.NewCache(&ristretto.Config{
		// roughly ten counters per item, assuming 100KB photos
		NumCounters: max(cfg.MaxBytes/10_000, 1000),
		MaxCost:     cfg.MaxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	return &ristrettoCache{
		client: client,
		ttl:    cfg.TTL,
	}, nil
}

func (c *ristrettoCache) Get(_ context.Context, id int64, version time.Time) (*models.ImageData, error) {
	value, found := c.client.Get(imageKey(id, version))
	if !found {
		return nil, ErrCacheMiss
	}

	data, ok := value.(*models.ImageData)
	if !ok {
		return nil, ErrCacheMiss
	}

	return data, nil
}

func (c *ristrettoCache) Set(_ context.Context, id int64, data *models.ImageData) error {
	cost := int64(len(data.Data) + len(data.Name))
	if c.client.SetWithTTL(imageKey(id, data.UpdatedAt), data, cost, c.ttl) {
		// make the value visible to the next Get
		c.client.Wait()
	}
	return nil
}

func (c *ristrettoCache) Close() error {
	c.client.Close()
	return nil
}
