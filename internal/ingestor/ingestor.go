package ingestor

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/config"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/metrics"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/interfaces"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

const milestoneEvery = 1000

var (
	ErrBadPrice     = errors.New("price must be positive and finite")
	ErrBadQuantity  = errors.New("quantity must be non-negative and finite")
	ErrNoTimestamp  = errors.New("trade has no timestamp")
	ErrUnsubscribed = errors.New("symbol not subscribed")
)

// TradeIngestor sits between a feed client and the collector. Trades that
// can't be aggregated are dropped before they reach the buffer.
type TradeIngestor struct {
	client  interfaces.MarketDataClient
	feed    string
	bufSize int
	logger  *logger.Logger
}

func NewTradeIngestor(
	client interfaces.MarketDataClient,
	cfg *config.Config,
	log *logger.Logger,
) *TradeIngestor {
	return &TradeIngestor{
		client:  client,
		feed:    cfg.Feed,
		bufSize: cfg.TradesChanBuff,
		logger:  log.Component("ingestor"),
	}
}

// SubscribeToSymbols subscribes the wrapped client through a proxy channel
// and forwards valid trades to tradeChan until ctx is done.
func (ti *TradeIngestor) SubscribeToSymbols(
	ctx context.Context,
	tradeChan chan<- marketdata.Trade,
	symbols []string,
) error {
	proxyChan := make(chan marketdata.Trade, ti.bufSize)

	ti.logger.Info("subscribing to market data",
		logger.String("feed", ti.feed),
		logger.Strings("symbols", symbols))
	if err := ti.client.SubscribeToSymbols(ctx, proxyChan, symbols); err != nil {
		ti.logger.Error("failed to subscribe to market data",
			logger.Error(err),
			logger.Strings("symbols", symbols))
		return err
	}

	allowed := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		allowed[s] = struct{}{}
	}

	go ti.forward(ctx, proxyChan, tradeChan, allowed)
	return nil
}

func (ti *TradeIngestor) Close() error {
	return ti.client.Close()
}

func (ti *TradeIngestor) forward(
	ctx context.Context,
	in <-chan marketdata.Trade,
	out chan<- marketdata.Trade,
	allowed map[string]struct{},
) {
	received, dropped := 0, 0
	defer func() {
		ti.logger.Debug("trade forwarding stopped",
			logger.Int("received", received),
			logger.Int("dropped", dropped))
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case trade := <-in:
			received++
			if err := Validate(trade, allowed); err != nil {
				dropped++
				metrics.FeedMessagesDroppedTotal.WithLabelValues(ti.feed).Inc()
				ti.logger.Debug("dropping invalid trade",
					logger.Error(err),
					logger.Symbol(trade.Symbol),
					logger.Int64("trade_id", trade.ID))
				continue
			}

			if received%milestoneEvery == 0 {
				ti.logger.Info("trade ingestion milestone",
					logger.Int("trades_received", received),
					logger.Int("dropped", dropped))
			}

			select {
			case out <- trade:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Validate checks that t can be bucketed. A nil allowed set accepts any symbol.
func Validate(t marketdata.Trade, allowed map[string]struct{}) error {
	if t.Price <= 0 || math.IsNaN(t.Price) || math.IsInf(t.Price, 0) {
		return fmt.Errorf("%w: %v", ErrBadPrice, t.Price)
	}
	if t.Quantity < 0 || math.IsNaN(t.Quantity) || math.IsInf(t.Quantity, 0) {
		return fmt.Errorf("%w: %v", ErrBadQuantity, t.Quantity)
	}
	if t.Timestamp.IsZero() {
		return ErrNoTimestamp
	}
	if allowed != nil {
		if _, ok := allowed[t.Symbol]; !ok {
			return fmt.Errorf("%w: %s", ErrUnsubscribed, t.Symbol)
		}
	}
	return nil
}
