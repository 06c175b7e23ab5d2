package cache

import (
	"context"
	"time"

	"github.com/oilclothshop/backend/internal/models"
)

type noopCache struct{}

// NewNoopCache returns a cache that never stores anything
func NewNoopCache() ImageCache {
	return noopCache{}
}

func (noopCache) Get(context.Context, int64, time.Time) (*models.ImageData, error) {
	return nil, ErrCacheMiss
}

func (noopCache) Set(context.Context, int64, *models.ImageData) error { return nil }

func (noopCache) Close() error { return nil }
