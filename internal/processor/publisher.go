package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/dashboard"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/metrics"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/utils"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/interfaces"
	"golang.org/x/sync/errgroup"
)

const publishTimeout = 500 * time.Millisecond

// LiveKey is the cache key holding the latest live view of symbol
func LiveKey(symbol string) string {
	return "buckets:live:" + symbol
}

// Channel is the pubsub channel live views of symbol are published on
func Channel(symbol string) string {
	return "buckets:" + symbol
}

// BucketPublisher caches and fans out aggregated views over Redis.
type BucketPublisher struct {
	cacheClient  interfaces.CacheClient
	pubsubClient interfaces.PubsubClient
	retry        utils.RetryConfig
	ttl          time.Duration
	logger       *logger.Logger
}

func NewBucketPublisher(
	cacheClient interfaces.CacheClient,
	pubsubClient interfaces.PubsubClient,
	ttl time.Duration,
	log *logger.Logger,
) *BucketPublisher {
	return &BucketPublisher{
		cacheClient:  cacheClient,
		pubsubClient: pubsubClient,
		retry:        utils.DefaultCacheRetryConfig(),
		ttl:          ttl,
		logger:       log.Component("publisher"),
	}
}

// Publish stores view under its live key and publishes it to subscribers.
// Both operations run concurrently and are retried independently.
func (bp *BucketPublisher) Publish(ctx context.Context, view dashboard.View) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	key := LiveKey(view.Symbol)
	channel := Channel(view.Symbol)

	g, ctx := errgroup.WithContext(ctx)

	if bp.cacheClient != nil {
		g.Go(func() error {
			op := func(ctx context.Context) error {
				metrics.RedisSetTotal.Inc()

				timer := metrics.NewTimer(metrics.RedisOperationDuration)
				err := bp.cacheClient.Set(ctx, key, view, bp.ttl)
				timer.ObserveDuration()

				if err != nil {
					metrics.RedisSetErrorsTotal.Inc()
					bp.logger.Warn("redis SET operation failed",
						logger.Error(err),
						logger.String("key", key))
					return err
				}
				bp.logger.Debug("redis SET successful",
					logger.String("key", key),
					logger.Int("buckets", len(view.Buckets)),
					logger.Duration("ttl", bp.ttl))
				return nil
			}
			return utils.RetryWithConfig(ctx, op, bp.retry, bp.logger)
		})
	}

	if bp.pubsubClient != nil {
		g.Go(func() error {
			op := func(ctx context.Context) error {
				metrics.RedisPublishTotal.Inc()

				timer := metrics.NewTimer(metrics.RedisOperationDuration)
				err := bp.pubsubClient.Publish(ctx, channel, view)
				timer.ObserveDuration()

				if err != nil {
					metrics.RedisPublishErrorsTotal.Inc()
					bp.logger.Warn("redis PUBLISH operation failed",
						logger.Error(err),
						logger.String("channel", channel))
					return err
				}
				bp.logger.Debug("redis PUBLISH successful",
					logger.String("channel", channel),
					logger.Int("buckets", len(view.Buckets)))
				return nil
			}
			return utils.RetryWithConfig(ctx, op, bp.retry, bp.logger)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("publishing %s view: %w", view.Symbol, err)
	}
	return nil
}
