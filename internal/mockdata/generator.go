package mockdata

import (
	"cmp"
	"context"
	"errors"
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/metrics"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

const (
	minPrice    = 0.0001
	minQuantity = 0.0001
	qtySpread   = 0.01
)

type Config struct {
	Symbols         []string
	TradesPerSecond int
	PriceVolatility float64
	Seed            int64
}

func DefaultConfig() Config {
	return Config{
		Symbols:         []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "ADAUSDT"},
		TradesPerSecond: 4,
		PriceVolatility: 0.002,
		Seed:            time.Now().UnixNano(),
	}
}

var basePrices = map[string]float64{
	"BTCUSDT": 65000, "ETHUSDT": 3200, "BNBUSDT": 580, "SOLUSDT": 150,
	"ADAUSDT": 0.45, "XRPUSDT": 0.52, "DOGEUSDT": 0.12,
}

// Generator produces random-walk trades. It is safe for concurrent use.
type Generator struct {
	config Config
	logger *logger.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	nextID int64
	prices map[string]float64
	cancel context.CancelFunc
}

func NewGenerator(config Config, log *logger.Logger) *Generator {
	if config.PriceVolatility <= 0 {
		config.PriceVolatility = DefaultConfig().PriceVolatility
	}
	if config.TradesPerSecond <= 0 {
		config.TradesPerSecond = DefaultConfig().TradesPerSecond
	}

	g := &Generator{
		config: config,
		logger: log,
		rng:    rand.New(rand.NewSource(config.Seed)),
		nextID: 1,
		prices: make(map[string]float64, len(config.Symbols)),
	}

	for _, symbol := range config.Symbols {
		if price, ok := basePrices[symbol]; ok {
			g.prices[symbol] = price
		} else {
			g.prices[symbol] = 50.0 + g.rng.Float64()*450.0
		}
	}
	return g
}

// Trades returns seconds*perSecond trades for symbol spaced evenly over the
// seconds ending at now, walking the price from startPrice.
func (g *Generator) Trades(symbol string, seconds, perSecond int, startPrice float64, now time.Time) []marketdata.Trade {
	n := seconds * perSecond
	if n <= 0 {
		return []marketdata.Trade{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	step := time.Second / time.Duration(perSecond)
	start := now.Add(-time.Duration(seconds) * time.Second)
	price := startPrice

	trades := make([]marketdata.Trade, 0, n)
	for i := 0; i < n; i++ {
		price = g.walk(price, startPrice)
		trades = append(trades, g.trade(symbol, price, start.Add(time.Duration(i+1)*step)))
	}

	metrics.MockTradesGeneratedTotal.WithLabelValues("batch").Add(float64(n))
	return trades
}

// Activity returns synthetic per-symbol buy and sell volumes, ordered by total volume.
func (g *Generator) Activity(symbols []string) []marketdata.SymbolActivity {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]marketdata.SymbolActivity, 0, len(symbols))
	for _, s := range symbols {
		buy := 3 + g.rng.Float64()*3
		sell := 3 + g.rng.Float64()*3
		out = append(out, marketdata.SymbolActivity{
			Symbol:     s,
			Volume:     buy + sell,
			Trades:     int64(10 + g.rng.Intn(90)),
			BuyVolume:  buy,
			SellVolume: sell,
		})
	}
	slices.SortStableFunc(out, func(a, b marketdata.SymbolActivity) int {
		return cmp.Compare(b.Volume, a.Volume)
	})
	return out
}

// SubscribeToSymbols streams trades for symbols into tradeChan until ctx is
// done or Close is called. It replaces any previous stream and returns immediately.
func (g *Generator) SubscribeToSymbols(ctx context.Context, tradeChan chan<- marketdata.Trade, symbols []string) error {
	if len(symbols) == 0 {
		return errors.New("no symbols to subscribe to")
	}

	streamCtx, cancel := context.WithCancel(ctx)

	g.mu.Lock()
	if g.cancel != nil {
		g.cancel()
	}
	g.cancel = cancel
	for _, s := range symbols {
		if _, ok := g.prices[s]; !ok {
			if price, ok := basePrices[s]; ok {
				g.prices[s] = price
			} else {
				g.prices[s] = 50.0 + g.rng.Float64()*450.0
			}
		}
	}
	g.mu.Unlock()

	g.logger.Info("starting mock trade stream",
		logger.Strings("symbols", symbols),
		logger.Int("trades_per_sec", g.config.TradesPerSecond),
		logger.Float64("volatility", g.config.PriceVolatility))

	go g.stream(streamCtx, tradeChan, symbols)
	return nil
}

func (g *Generator) stream(ctx context.Context, tradeChan chan<- marketdata.Trade, symbols []string) {
	ticker := time.NewTicker(time.Second / time.Duration(g.config.TradesPerSecond))
	defer ticker.Stop()

	generated := 0
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("mock trade stream stopped", logger.Int("total_trades_generated", generated))
			return
		case now := <-ticker.C:
			trade := g.next(symbols, now)
			select {
			case tradeChan <- trade:
				generated++
				metrics.MockTradesGeneratedTotal.WithLabelValues("stream").Inc()
			default:
				metrics.MockTradesDroppedTotal.Inc()
				g.logger.Warn("trade channel full, dropping mock trade",
					logger.Symbol(trade.Symbol))
			}
		}
	}
}

func (g *Generator) next(symbols []string, now time.Time) marketdata.Trade {
	g.mu.Lock()
	defer g.mu.Unlock()

	symbol := symbols[g.rng.Intn(len(symbols))]
	price := g.walk(g.prices[symbol], g.prices[symbol])
	g.prices[symbol] = price
	return g.trade(symbol, price, now)
}

// Close stops the current stream. The generator can be subscribed again.
func (g *Generator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	return nil
}

// walk applies one shock scaled to ref. Caller holds mu.
func (g *Generator) walk(price, ref float64) float64 {
	shock := (g.rng.Float64() - 0.5) * 2 * g.config.PriceVolatility * ref
	return math.Max(minPrice, price+shock)
}

// trade builds the next trade. Caller holds mu.
func (g *Generator) trade(symbol string, price float64, ts time.Time) marketdata.Trade {
	qty := math.Round((g.rng.Float64()*qtySpread+minQuantity)*1e6) / 1e6
	t := marketdata.Trade{
		ID:           g.nextID,
		Symbol:       symbol,
		Price:        price,
		Quantity:     qty,
		Timestamp:    ts.UTC().Truncate(time.Millisecond),
		IsBuyerMaker: g.rng.Intn(2) == 1,
	}
	g.nextID++
	return t
}
