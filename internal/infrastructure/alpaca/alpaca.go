package alpaca

import (
	"context"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/config"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/metrics"
	md "github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

const feedName = "alpaca"

var quoteAssets = []string{"USDT", "USDC", "USD", "BTC"}

type AlpacaClient struct {
	client  *stream.CryptoClient
	symbols []string
	logger  *logger.Logger
}

// NewAlpacaClient connects to the US crypto stream. Credentials are read by
// the SDK from APCA_API_KEY_ID and APCA_API_SECRET_KEY.
func NewAlpacaClient(ctx context.Context, cfg *config.Config, log *logger.Logger) (*AlpacaClient, error) {
	client := stream.NewCryptoClient(marketdata.US)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	return &AlpacaClient{
		client:  client,
		symbols: toPairs(cfg.Symbols),
		logger:  log.Component("alpaca"),
	}, nil
}

func (mc *AlpacaClient) SubscribeToSymbols(ctx context.Context, tradeChan chan<- md.Trade, symbols []string) error {
	pairs := toPairs(symbols)
	mc.symbols = pairs
	mc.logger.Info("subscribing to crypto trades", logger.Strings("pairs", pairs))

	return mc.client.SubscribeToTrades(func(t stream.CryptoTrade) {
		trade := toTrade(t)
		select {
		case tradeChan <- trade:
			metrics.TradesReceivedTotal.WithLabelValues(feedName).Inc()
		case <-ctx.Done():
			return
		default:
			metrics.FeedMessagesDroppedTotal.WithLabelValues(feedName).Inc()
			mc.logger.Warn("tradeChan full, dropping trade", logger.Symbol(trade.Symbol))
		}
	}, pairs...)
}

func (mc *AlpacaClient) Close() error {
	return mc.client.UnsubscribeFromTrades(mc.symbols...)
}

// toTrade maps an Alpaca crypto trade. A sell taker means the resting order
// was the buyer, so the trade is flagged buyer-maker.
func toTrade(t stream.CryptoTrade) md.Trade {
	return md.Trade{
		ID:           t.ID,
		Symbol:       fromPair(t.Symbol),
		Price:        t.Price,
		Quantity:     t.Size,
		Timestamp:    t.Timestamp.UTC(),
		IsBuyerMaker: strings.EqualFold(t.TakerSide, "S"),
	}
}

// toPair converts BTCUSDT to BTC/USDT
func toPair(symbol string) string {
	symbol = strings.ToUpper(symbol)
	if strings.Contains(symbol, "/") {
		return symbol
	}
	for _, q := range quoteAssets {
		if base, ok := strings.CutSuffix(symbol, q); ok && base != "" {
			return base + "/" + q
		}
	}
	return symbol
}

func toPairs(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, toPair(s))
	}
	return out
}

func fromPair(pair string) string {
	return strings.ReplaceAll(pair, "/", "")
}
