package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geobeacon/backend/internal/metrics"
	"github.com/geobeacon/backend/internal/models"
)

// CacheTTL bounds how stale a cached estimate can be before the
// responder falls back to MySQL, trading a little staleness for far
// fewer reads against the table the engine is concurrently writing.
const CacheTTL = 30 * time.Second

// ReadThroughCache sits in front of Store for the geolocate responder's
// read path, checking Redis before falling back to a direct MySQL
// lookup and populating the cache on miss.
type ReadThroughCache struct {
	store  *Store
	client *redis.Client
}

func NewReadThroughCache(s *Store, client *redis.Client) *ReadThroughCache {
	return &ReadThroughCache{store: s, client: client}
}

// LookupDefault satisfies internal/geolocate.TransmitterStore.
func (c *ReadThroughCache) LookupDefault(ctx context.Context, key models.TransmitterKey) (*models.Estimate, error) {
	cacheKey := "tx:" + key.String()

	start := time.Now()
	cached, err := c.client.Get(ctx, cacheKey).Bytes()
	metrics.RedisOperationDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	if err == nil {
		if len(cached) == 0 {
			return nil, nil // cached negative lookup
		}
		var e models.Estimate
		if err := json.Unmarshal(cached, &e); err != nil {
			return nil, fmt.Errorf("store: unmarshal cached estimate: %w", err)
		}
		return &e, nil
	}
	if err != redis.Nil {
		metrics.RedisOperationErrors.WithLabelValues("get").Inc()
	}

	est, err := c.store.LookupDefault(ctx, key)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if est != nil {
		payload, err = json.Marshal(est)
		if err != nil {
			return nil, fmt.Errorf("store: marshal estimate for cache: %w", err)
		}
	}
	if err := c.client.Set(ctx, cacheKey, payload, CacheTTL).Err(); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("set").Inc()
	}
	return est, nil
}
