package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/yourorg/backtest-service/internal/model"
)

// ResultCache keeps completed backtest results in Redis so repeated reads
// of the same run skip the database. Results are immutable, so entries are
// only ever written once and expired by TTL.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewResultCache creates a new result cache
func NewResultCache(address, password string, db int, ttl time.Duration, logger *zap.Logger) *ResultCache {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if ttl <= 0 {
		ttl = time.Hour
	}

	return &ResultCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns a cached result, or nil on a miss. Cache errors are logged
// and treated as misses; the caller falls through to the database.
func (c *ResultCache) Get(ctx context.Context, backtestID string) *model.BacktestResult {
	data, err := c.client.Get(ctx, cacheKey(backtestID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Result cache read failed", zap.Error(err))
		}
		return nil
	}

	var result model.BacktestResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("Failed to unmarshal cached result",
			zap.String("backtest_id", backtestID),
			zap.Error(err))
		return nil
	}
	return &result
}

// Set stores a completed result. Failures are logged, never fatal.
func (c *ResultCache) Set(ctx context.Context, result *model.BacktestResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("Failed to marshal result for cache", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, cacheKey(result.BacktestID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Result cache write failed", zap.Error(err))
	}
}

// Delete drops a cached result after the stored run is deleted.
func (c *ResultCache) Delete(ctx context.Context, backtestID string) {
	if err := c.client.Del(ctx, cacheKey(backtestID)).Err(); err != nil {
		c.logger.Warn("Result cache delete failed", zap.Error(err))
	}
}

// Close closes the Redis connection.
func (c *ResultCache) Close() error {
	return c.client.Close()
}

func cacheKey(backtestID string) string {
	return "backtest:result:" + backtestID
}
