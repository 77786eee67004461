package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/api"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/collector"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/config"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/dashboard"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/infrastructure/alpaca"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/infrastructure/binance"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/infrastructure/clickhouse"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/infrastructure/kafka"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/infrastructure/memstore"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/infrastructure/redis"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/ingestor"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/metrics"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/mockdata"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/poller"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/processor"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/producer"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/interfaces"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout        = 5 * time.Second
	runtimeMetricsInterval = 15 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

func main() {
	// .env is optional
	envErr := godotenv.Load()

	log := logger.New()
	defer log.Sync()

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn("failed to load .env file", logger.Error(envErr))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig(os.Getenv, log)
	if err != nil {
		log.Fatal("failed to load configuration", logger.Error(err))
	}

	gen := newGenerator(cfg, log)

	store, closeStore := newTradeStore(ctx, cfg, log)
	defer closeStore()

	feed := ingestor.NewTradeIngestor(newFeedClient(ctx, cfg, gen, log), cfg, log)
	coll := collector.NewCollector(feed, store, cfg, log)

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.KafkaBrokers) > 0 {
		kafkaProducer, err := kafka.NewKafkaSyncProducer(cfg)
		if err != nil {
			log.Warn("kafka unavailable, raw trades will not be published",
				logger.Strings("brokers", cfg.KafkaBrokers),
				logger.Error(err))
		} else {
			kafkaTradesChan := make(chan marketdata.Trade, cfg.TradesChanBuff)
			coll.WithKafka(kafkaTradesChan)
			kafkaWorker := producer.NewKafkaWorker(kafkaProducer, log)
			g.Go(func() error {
				return kafkaWorker.Start(gctx, kafkaTradesChan)
			})
		}
	}

	cacheClient, pubsubClient := newRedisClients(ctx, cfg, log)
	defer func() {
		if cacheClient != nil {
			_ = cacheClient.Close()
		}
		if pubsubClient != nil {
			_ = pubsubClient.Close()
		}
	}()

	var publisher poller.Publisher
	if cacheClient != nil || pubsubClient != nil {
		publisher = processor.NewBucketPublisher(cacheClient, pubsubClient, 2*cfg.PollInterval, log)
	}

	dash := dashboard.NewService(store, gen, cfg, log)
	livePoller := poller.NewPoller(dash, store, publisher, cfg.Symbols, cfg.LiveMinutes, cfg.PollInterval, log)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(gctx, coll, dash, livePoller, cfg.AllowedOrigins, log).Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var pprof *http.Server
	if cfg.PprofAddr != "" {
		pprof = &http.Server{Addr: cfg.PprofAddr, ReadHeaderTimeout: readHeaderTimeout}
		go func() {
			log.Info("starting pprof server", logger.String("addr", cfg.PprofAddr))
			if err := pprof.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("pprof server error", logger.Error(err))
			}
		}()
	}

	var samplers []metrics.Sampler
	if sized, ok := store.(interface{ Len() int }); ok {
		samplers = append(samplers, metrics.StoreSizeSampler(store.Name(), sized.Len))
	}
	g.Go(func() error {
		return metrics.RunRuntimeCollector(gctx, runtimeMetricsInterval, samplers...)
	})

	g.Go(func() error {
		return livePoller.Start(gctx)
	})

	g.Go(func() error {
		log.Info("http server starting", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, stopping components")

		if coll.Stop() {
			log.Info("collector stopped")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown error", logger.Error(err))
		}
		if pprof != nil {
			if err := pprof.Shutdown(shutdownCtx); err != nil {
				log.Warn("pprof shutdown error", logger.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("service exited with error", logger.Error(err))
		return
	}
	log.Info("service shut down gracefully")
}

func newGenerator(cfg *config.Config, log *logger.Logger) *mockdata.Generator {
	genCfg := mockdata.DefaultConfig()
	genCfg.Symbols = cfg.Symbols
	return mockdata.NewGenerator(genCfg, log.Component("mockdata"))
}

// newTradeStore connects to ClickHouse and falls back to the in-memory store
// when it is disabled or unreachable.
func newTradeStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (interfaces.TradeStore, func()) {
	if cfg.ClickHouseEnabled {
		client, err := clickhouse.NewClient(ctx, cfg, log)
		if err == nil {
			log.Info("using clickhouse trade store",
				logger.String("addr", client.Addr()),
				logger.String("table", client.Table()))
			return client, client.Close
		}
		log.Warn("clickhouse unavailable, falling back to in-memory store", logger.Error(err))
	}

	log.Info("using in-memory trade store", logger.Int("max_trades", cfg.MaxMemoryTrades))
	return memstore.New(cfg.MaxMemoryTrades), func() {}
}

func newFeedClient(ctx context.Context, cfg *config.Config, gen *mockdata.Generator, log *logger.Logger) interfaces.MarketDataClient {
	switch cfg.Feed {
	case config.FeedBinance:
		return binance.NewClient(cfg, log)
	case config.FeedAlpaca:
		client, err := alpaca.NewAlpacaClient(ctx, cfg, log)
		if err == nil {
			return client
		}
		log.Warn("alpaca feed unavailable, using synthetic trades", logger.Error(err))
	}
	return gen
}

func newRedisClients(ctx context.Context, cfg *config.Config, log *logger.Logger) (interfaces.CacheClient, interfaces.PubsubClient) {
	var (
		cacheClient  interfaces.CacheClient
		pubsubClient interfaces.PubsubClient
	)

	if cfg.RedisCacheAddr != "" {
		c, err := redis.NewBucketCache(ctx, cfg, log)
		if err != nil {
			log.Warn("redis cache unavailable", logger.String("addr", cfg.RedisCacheAddr), logger.Error(err))
		} else {
			cacheClient = c
		}
	}

	if cfg.RedisPubsubAddr != "" {
		c, err := redis.NewBucketPubsub(ctx, cfg, log)
		if err != nil {
			log.Warn("redis pubsub unavailable", logger.String("addr", cfg.RedisPubsubAddr), logger.Error(err))
		} else {
			pubsubClient = c
		}
	}

	return cacheClient, pubsubClient
}
