package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// System metrics
	GoroutinesCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_goroutines_count",
		Help: "The current number of goroutines",
	})

	MemoryAllocBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_memory_alloc_bytes",
		Help: "Current memory allocation in bytes",
	})

	HeapAllocBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_heap_alloc_bytes",
		Help: "Current heap allocation in bytes",
	})

	HeapObjectsCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_heap_objects_count",
		Help: "Current number of allocated heap objects",
	})

	GCPauseNanosTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_gc_pause_nanos_total",
		Help: "Total time spent in GC pause in nanoseconds",
	})

	// Feed metrics
	TradesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_trades_received_total",
		Help: "Total number of trades received from the feed",
	}, []string{"feed"})

	FeedMessagesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_feed_messages_dropped_total",
		Help: "Total number of malformed feed messages dropped",
	}, []string{"feed"})

	FeedReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_feed_reconnects_total",
		Help: "Total number of feed reconnect attempts",
	}, []string{"feed"})

	// Collector metrics
	CollectorRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_collector_running",
		Help: "Whether the trade collector is running (1) or not (0)",
	})

	CollectorBufferSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_collector_buffer_size",
		Help: "Current number of trades buffered before the next flush",
	})

	TradesInsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_trades_inserted_total",
		Help: "Total number of trades written to the store",
	})

	TradeInsertErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_trade_insert_errors_total",
		Help: "Total number of failed batch inserts",
	})

	TradeInsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "app_trade_insert_duration_seconds",
		Help:    "Duration of batch inserts",
		Buckets: prometheus.DefBuckets,
	})

	// Aggregation metrics
	AggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "app_aggregation_duration_seconds",
		Help:    "Duration of trade aggregation operations",
		Buckets: prometheus.DefBuckets,
	})

	BucketsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_buckets_emitted_total",
		Help: "Total number of buckets produced by the aggregator",
	}, []string{"mode"})

	// Dashboard metrics
	DashboardFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_dashboard_fallbacks_total",
		Help: "Total number of views served from synthetic data",
	}, []string{"view", "reason"})

	StoreQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "app_store_query_duration_seconds",
		Help:    "Duration of trade store queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	// Poller metrics
	PollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_polls_total",
		Help: "Total number of poll cycles",
	})

	IngestedTradesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_ingested_trades",
		Help: "Trades observed by the poller since the last reset",
	})

	// Redis metrics
	RedisSetTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_redis_set_total",
		Help: "Total number of Redis SET operations",
	})

	RedisSetErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_redis_set_errors_total",
		Help: "Total number of Redis SET errors",
	})

	RedisPublishTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_redis_publish_total",
		Help: "Total number of Redis PUBLISH operations",
	})

	RedisPublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_redis_publish_errors_total",
		Help: "Total number of Redis PUBLISH errors",
	})

	RedisOperationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "app_redis_operation_duration_seconds",
		Help:    "Duration of Redis operations",
		Buckets: prometheus.DefBuckets,
	})

	// Kafka metrics
	KafkaPublishTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_kafka_publish_total",
		Help: "Total number of Kafka publish operations",
	})

	KafkaPublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_kafka_publish_errors_total",
		Help: "Total number of Kafka publish errors",
	})

	KafkaOperationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "app_kafka_operation_duration_seconds",
		Help:    "Duration of Kafka operations",
		Buckets: prometheus.DefBuckets,
	})

	KafkaChanSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_kafka_channel_size",
		Help: "Current size of the Kafka channel",
	})

	KafkaChanCapacity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_kafka_channel_capacity",
		Help: "Capacity of the Kafka channel",
	})

	KafkaTradesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_kafka_trades_dropped_total",
		Help: "Trades not forwarded to Kafka because the channel was full",
	})

	StoredTrades = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "app_stored_trades",
		Help: "Trades currently held by a bounded trade store",
	}, []string{"store"})
)
