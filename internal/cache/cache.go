// Package cache keeps recently served image payloads out of the database
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oilclothshop/backend/internal/config"
	"github.com/oilclothshop/backend/internal/models"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by Get when the image is not cached
var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "oilcloth:image"

// ImageCache stores image payloads by image id and version.
//
// The version is the image's updated_at. An entry never changes once written:
// a rename, replacement or delete moves the image to a new version or removes it,
// and entries of older versions are left to expire.
type ImageCache interface {
	// Get returns the payload cached for the given version or ErrCacheMiss
	Get(ctx context.Context, id int64, version time.Time) (*models.ImageData, error)
	// Set stores the payload under the version it was read at (data.UpdatedAt)
	Set(ctx context.Context, id int64, data *models.ImageData) error
	// Close releases the underlying resources
	Close() error
}

// imageKey builds the cache key of one version of an image
func imageKey(id int64, version time.Time) string {
	return fmt.Sprintf("%s:%d:%d", keyPrefix, id, version.UnixMicro())
}

// New creates the image cache selected by cfg.Cache.Driver
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ImageCache, error) {
	switch cfg.Cache.Driver {
	case config.CacheDriverNone:
		logger.Info("image cache disabled")
		return NewNoopCache(), nil
	case config.CacheDriverRedis:
		c, err := NewRedisCache(ctx, RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("image cache using redis", zap.String("addr", cfg.RedisAddr()))
		return c, nil
	case config.CacheDriverMemory, "":
		c, err := NewRistrettoCache(RistrettoConfig{
			MaxBytes: cfg.Cache.MaxBytes,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("image cache using memory", zap.Int64("max_bytes", cfg.Cache.MaxBytes))
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache driver: %s", cfg.Cache.Driver)
	}
}
