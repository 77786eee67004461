package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
)

const (
	BATCH_SIZE_DEFAULT       = 500
	FLUSH_EVERY_SEC_DEFAULT  = 5
	BUCKET_WIDTH_SEC_DEFAULT = 60
	LIVE_MINUTES_DEFAULT     = 10
	HIST_MINUTES_DEFAULT     = 360
	POLL_INTERVAL_MS_DEFAULT = 10_000
	POLL_INTERVAL_MS_MIN     = 500
	MAX_MEMORY_TRADES        = 200_000

	FeedBinance = "binance"
	FeedAlpaca  = "alpaca"
	FeedMock    = "mock"
)

var defaultSymbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "ADAUSDT"}

type Config struct {
	HTTPAddr       string
	PprofAddr      string
	AllowedOrigins []string

	Symbols      []string
	Feed         string
	BinanceWSURL string

	BatchSize  int
	FlushEvery time.Duration

	BucketWidth  time.Duration
	LiveMinutes  int
	HistMinutes  int
	PollInterval time.Duration

	ClickHouseEnabled  bool
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseDatabase string
	ClickHouseSecure   bool

	RedisCacheAddr string
	RedisCacheUser string
	RedisCachePw   string
	RedisCacheDB   int

	RedisPubsubAddr string
	RedisPubsubUser string
	RedisPubsubPw   string

	KafkaBrokers     []string
	KafkaTopicTrades string

	TradesChanBuff  int
	MaxMemoryTrades int
}

func LoadConfig(getenv func(string) string, log *logger.Logger) (*Config, error) {
	log.Info("loading configuration from environment")

	feed := strings.ToLower(strings.TrimSpace(getenv("FEED")))
	switch feed {
	case "":
		feed = FeedBinance
	case FeedBinance, FeedAlpaca, FeedMock:
	default:
		return nil, fmt.Errorf("FEED must be one of binance|alpaca|mock, got %q", feed)
	}

	pollMs := intOr(getenv, log, "POLL_INTERVAL_MS", POLL_INTERVAL_MS_DEFAULT)
	if pollMs < POLL_INTERVAL_MS_MIN {
		log.Warn("poll interval too low, using minimum value",
			logger.Int("provided_ms", pollMs),
			logger.Int("min_ms", POLL_INTERVAL_MS_MIN))
		pollMs = POLL_INTERVAL_MS_MIN
	}

	redisCacheDB := 0
	if s := getenv("REDIS_CACHE_DB"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			log.Error("invalid Redis cache DB value, must be a number",
				logger.String("value", s),
				logger.Error(err))
			return nil, fmt.Errorf("REDIS_CACHE_DB can't be parsed to a number: %w", err)
		}
		redisCacheDB = n
	}

	kafkaBrokers := splitList(getenv("KAFKA_BROKERS"))
	if len(kafkaBrokers) == 0 {
		log.Info("no Kafka brokers specified, raw trades will not be published")
	}

	kafkaTopic := getenv("KAFKA_TOPIC_TRADES")
	if kafkaTopic == "" {
		kafkaTopic = "crypto-trades"
	}

	cfg := &Config{
		HTTPAddr:       stringOr(getenv, "HTTP_ADDR", ":8080"),
		PprofAddr:      getenv("PPROF_ADDR"),
		AllowedOrigins: splitList(stringOr(getenv, "ALLOWED_ORIGINS", "http://127.0.0.1:8080,http://localhost:8080")),

		Symbols:      parseSymbols(getenv("SYMBOLS"), log),
		Feed:         feed,
		BinanceWSURL: stringOr(getenv, "BINANCE_WS_URL", "wss://stream.binance.com:9443"),

		BatchSize:  positiveIntOr(getenv, log, "BATCH_SIZE", BATCH_SIZE_DEFAULT),
		FlushEvery: time.Duration(positiveIntOr(getenv, log, "FLUSH_EVERY_SEC", FLUSH_EVERY_SEC_DEFAULT)) * time.Second,

		BucketWidth:  time.Duration(positiveIntOr(getenv, log, "BUCKET_WIDTH_SEC", BUCKET_WIDTH_SEC_DEFAULT)) * time.Second,
		LiveMinutes:  positiveIntOr(getenv, log, "LIVE_MINUTES", LIVE_MINUTES_DEFAULT),
		HistMinutes:  positiveIntOr(getenv, log, "HIST_MINUTES", HIST_MINUTES_DEFAULT),
		PollInterval: time.Duration(pollMs) * time.Millisecond,

		ClickHouseEnabled:  boolOr(getenv, "CH_ENABLED", true),
		ClickHouseHost:     stringOr(getenv, "CH_HOST", "localhost"),
		ClickHousePort:     positiveIntOr(getenv, log, "CH_PORT", 9000),
		ClickHouseUser:     stringOr(getenv, "CH_USER", "default"),
		ClickHousePassword: getenv("CH_PASSWORD"),
		ClickHouseDatabase: stringOr(getenv, "CH_DATABASE", "crypto"),
		ClickHouseSecure:   boolOr(getenv, "CH_SECURE", false),

		RedisCacheAddr: getenv("REDIS_CACHE_ADDR"),
		RedisCacheUser: getenv("REDIS_CACHE_UN"),
		RedisCachePw:   getenv("REDIS_CACHE_PW"),
		RedisCacheDB:   redisCacheDB,

		RedisPubsubAddr: getenv("REDIS_PUBSUB_ADDR"),
		RedisPubsubUser: getenv("REDIS_PUBSUB_UN"),
		RedisPubsubPw:   getenv("REDIS_PUBSUB_PW"),

		KafkaBrokers:     kafkaBrokers,
		KafkaTopicTrades: kafkaTopic,

		TradesChanBuff:  positiveIntOr(getenv, log, "TRADES_CHAN_BUFF", 1000),
		MaxMemoryTrades: positiveIntOr(getenv, log, "MAX_MEMORY_TRADES", MAX_MEMORY_TRADES),
	}

	if path := getenv("WATCHLIST_PATH"); path != "" {
		symbols, err := LoadWatchlist(path)
		if err != nil {
			return nil, fmt.Errorf("load watchlist %s: %w", path, err)
		}
		log.Info("watchlist overrides SYMBOLS", logger.String("path", path), logger.Int("symbols_count", len(symbols)))
		cfg.Symbols = symbols
	}

	// hiding sensitive values
	log.Info("configuration loaded successfully",
		logger.String("http_addr", cfg.HTTPAddr),
		logger.String("feed", cfg.Feed),
		logger.Strings("symbols", cfg.Symbols),
		logger.Int("batch_size", cfg.BatchSize),
		logger.Duration("flush_every", cfg.FlushEvery),
		logger.Duration("bucket_width", cfg.BucketWidth),
		logger.Duration("poll_interval", cfg.PollInterval),
		logger.Bool("clickhouse_enabled", cfg.ClickHouseEnabled),
		logger.String("clickhouse_addr", fmt.Sprintf("%s:%d", cfg.ClickHouseHost, cfg.ClickHousePort)),
		logger.String("clickhouse_db", cfg.ClickHouseDatabase),
		logger.String("redis_cache_addr", cfg.RedisCacheAddr),
		logger.String("redis_pubsub_addr", cfg.RedisPubsubAddr),
		logger.Strings("kafka_brokers", cfg.KafkaBrokers),
		logger.String("kafka_topic", cfg.KafkaTopicTrades))

	return cfg, nil
}

// parseSymbols parses the comma-separated list of symbols from the environment
func parseSymbols(symbolsStr string, log *logger.Logger) []string {
	if symbolsStr == "" {
		log.Info("no symbols provided, using default symbols",
			logger.Strings("symbols", defaultSymbols))
		return append([]string(nil), defaultSymbols...)
	}

	symbols := normalizeSymbols(strings.Split(symbolsStr, ","))
	if len(symbols) == 0 {
		log.Warn("all provided symbols were empty, using default symbols",
			logger.Strings("defaults", defaultSymbols))
		return append([]string(nil), defaultSymbols...)
	}
	return symbols
}

// normalizeSymbols upper-cases, trims and dedups while keeping order
func normalizeSymbols(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func stringOr(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func intOr(getenv func(string) string, log *logger.Logger, key string, def int) int {
	s := strings.TrimSpace(getenv(key))
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Warn("invalid integer format, using default",
			logger.String("key", key),
			logger.String("value", s),
			logger.Int("default", def),
			logger.Error(err))
		return def
	}
	return n
}

func positiveIntOr(getenv func(string) string, log *logger.Logger, key string, def int) int {
	n := intOr(getenv, log, key, def)
	if n <= 0 {
		log.Warn("value must be positive, using default",
			logger.String("key", key),
			logger.Int("value", n),
			logger.Int("default", def))
		return def
	}
	return n
}

func boolOr(getenv func(string) string, key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(getenv(key))) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}
