package cache

import (
	"context"
	"errors"
	"time"

	"github.com/oilclothshop/backend/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

type instrumentedCache struct {
	ImageCache
	lookups *prometheus.CounterVec
}

// WithMetrics counts lookups of c by result ("hit", "miss" or "error")
func WithMetrics(c ImageCache, lookups *prometheus.CounterVec) ImageCache {
	return &instrumentedCache{ImageCache: c, lookups: lookups}
}

func (c *instrumentedCache) Get(ctx context.Context, id int64, version time.Time) (*models.ImageData, error) {
	data, err := c.ImageCache.Get(ctx, id, version)
	switch {
	case err == nil:
		c.lookups.WithLabelValues("hit").Inc()
	case errors.Is(err, ErrCacheMiss):
		c.lookups.WithLabelValues("miss").Inc()
	default:
		c.lookups.WithLabelValues("error").Inc()
	}
	return data, err
}
