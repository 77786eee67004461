package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/config"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = time.Second

// BucketCache holds the latest bucket series per symbol.
type BucketCache struct {
	client *redis.Client
}

// BucketPubsub fans bucket series out to dashboard subscribers.
type BucketPubsub struct {
	client *redis.Client
}

func NewBucketCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (*BucketCache, error) {
	client, err := dial(ctx, &redis.Options{
		Addr:     cfg.RedisCacheAddr,
		Username: cfg.RedisCacheUser,
		Password: cfg.RedisCachePw,
		DB:       cfg.RedisCacheDB,
	}, log.Component("redis-cache"))
	if err != nil {
		return nil, err
	}
	return &BucketCache{client: client}, nil
}

func NewBucketPubsub(ctx context.Context, cfg *config.Config, log *logger.Logger) (*BucketPubsub, error) {
	client, err := dial(ctx, &redis.Options{
		Addr:     cfg.RedisPubsubAddr,
		Username: cfg.RedisPubsubUser,
		Password: cfg.RedisPubsubPw,
	}, log.Component("redis-pubsub"))
	if err != nil {
		return nil, err
	}
	return &BucketPubsub{client: client}, nil
}

func dial(ctx context.Context, opts *redis.Options, log *logger.Logger) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address not configured")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	log.Info("redis ready", logger.String("addr", opts.Addr), logger.Int("db", opts.DB))
	return client, nil
}

// Set stores value under key. Bucket views and slices are stored as JSON.
func (c *BucketCache) Set(ctx context.Context, key string, value any, exp time.Duration) error {
	payload, err := encode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.client.Set(ctx, key, payload, exp).Err()
}

func (c *BucketCache) Close() error {
	return c.client.Close()
}

func (p *BucketPubsub) Publish(ctx context.Context, channel string, message any) error {
	payload, err := encode(message)
	if err != nil {
		return fmt.Errorf("encode message for %s: %w", channel, err)
	}
	return p.client.Publish(ctx, channel, payload).Err()
}

func (p *BucketPubsub) Close() error {
	return p.client.Close()
}

// encode passes scalars through and JSON-encodes everything else
func encode(value any) (any, error) {
	switch v := value.(type) {
	case string, []byte, int, int64, float64, bool:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
