package interfaces

import (
	"context"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

type MarketDataClient interface {
	SubscribeToSymbols(ctx context.Context, tradeChan chan<- marketdata.Trade, symbols []string) error
	Close() error
}

type CacheClient interface {
	Set(context.Context, string, any, time.Duration) error
	Close() error
}

type PubsubClient interface {
	Publish(ctx context.Context, channel string, message any) error
	Close() error
}

type KafkaProducer interface {
	Produce(ctx context.Context, trade marketdata.Trade) (partition int32, offset int64, err error)
	Close() error
}

type TradeWriter interface {
	InsertTrades(ctx context.Context, trades []marketdata.Trade) error
}

type TradeReader interface {
	// TradesSince returns trades for symbol at or after since, oldest first.
	TradesSince(ctx context.Context, symbol string, since time.Time) ([]marketdata.Trade, error)
	// RecentTrades returns at most limit trades within window, newest first.
	RecentTrades(ctx context.Context, symbol string, window time.Duration, limit int) ([]marketdata.Trade, error)
	// TopSymbols ranks symbols by traded volume over the last window.
	TopSymbols(ctx context.Context, window time.Duration, limit int) ([]marketdata.SymbolActivity, error)
}

type TradeStore interface {
	TradeWriter
	TradeReader
	Name() string
}
