package index

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"imgbed/pkg/config"
	"imgbed/pkg/types"
)

// RedisCache shares the index mirror between serving processes. Cache
// failures degrade to a miss so the store falls back to its backend.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(cfg *config.CacheConfig, key string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client, key: key, ttl: cfg.TTL}, nil
}

func (c *RedisCache) Get(ctx context.Context) ([]types.ImageRecord, bool) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", c.key).Msg("index cache read failed")
		}
		return nil, false
	}

	var recs []types.ImageRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		log.Warn().Err(err).Str("key", c.key).Msg("index cache entry malformed")
		return nil, false
	}
	return recs, true
}

func (c *RedisCache) Set(ctx context.Context, records []types.ImageRecord) {
	data, err := json.Marshal(records)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal index for cache")
		return
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", c.key).Msg("index cache write failed")
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
