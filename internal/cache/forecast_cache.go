package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stockcast/backend-go/internal/domain"
)

// ForecastCache keeps the latest forecast per (sku, horizon) close to the
// read path. It is an acceleration only; freshness decisions are always made
// against storage.
type ForecastCache interface {
	Get(ctx context.Context, sku string, horizonDays int) (*domain.Forecast, bool, error)
	Set(ctx context.Context, f *domain.Forecast) error
	Invalidate(ctx context.Context, sku string) error
}

type redisForecastCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisForecastCache wraps a redis client in a ForecastCache with the
// given TTL.
func NewRedisForecastCache(client *redis.Client, ttl time.Duration) ForecastCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &redisForecastCache{client: client, ttl: ttl}
}

func forecastKey(sku string, horizonDays int) string {
	return fmt.Sprintf("forecast:%s:%d", sku, horizonDays)
}

func (c *redisForecastCache) Get(ctx context.Context, sku string, horizonDays int) (*domain.Forecast, bool, error) {
	raw, err := c.client.Get(ctx, forecastKey(sku, horizonDays)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("forecast cache get failed: %w", err)
	}

	var f domain.Forecast
	if err := json.Unmarshal(raw, &f); err != nil {
		// A corrupt entry is treated as a miss; it will be overwritten.
		return nil, false, nil
	}

	return &f, true, nil
}

func (c *redisForecastCache) Set(ctx context.Context, f *domain.Forecast) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("forecast cache marshal failed: %w", err)
	}

	if err := c.client.Set(ctx, forecastKey(f.SKU, f.HorizonDays), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("forecast cache set failed: %w", err)
	}

	return nil
}

func (c *redisForecastCache) Invalidate(ctx context.Context, sku string) error {
	return deleteKeysWithPrefix(ctx, c.client, "forecast:"+sku+":", 100)
}

type noopForecastCache struct{}

// NewNoopForecastCache returns a cache that never hits, for deployments
// without redis.
func NewNoopForecastCache() ForecastCache {
	return noopForecastCache{}
}

func (noopForecastCache) Get(context.Context, string, int) (*domain.Forecast, bool, error) {
	return nil, false, nil
}

func (noopForecastCache) Set(context.Context, *domain.Forecast) error { return nil }

func (noopForecastCache) Invalidate(context.Context, string) error { return nil }
