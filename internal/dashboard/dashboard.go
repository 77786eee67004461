package dashboard

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/aggregator"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/config"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/metrics"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/mockdata"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/interfaces"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

type Mode string

const (
	ModeLive           Mode = "live"
	ModeHistorical     Mode = "historical"
	ModeDemoLive       Mode = "demo-live"
	ModeDemoHistorical Mode = "demo-historical"
)

const (
	StatusOK       = "OK"
	StatusDemo     = "demo mode"
	StatusError    = "error loading - showing demo data"
	StatusNoTrades = "no trades yet - showing demo data"
)

const (
	liveStartPrice       = 65000.0
	historicalStartPrice = 64000.0

	liveTradesPerSec       = 4
	historicalTradesPerSec = 4
	demoHistTradesPerSec   = 3
	recentTradesPerSec     = 8

	demoLiveMinutes = 10
	demoHistMinutes = 360
	demoSymbol      = "BTCUSDT"

	maxRecentTrades = 500
)

var errNoStore = errors.New("no trade store configured")

// View is one aggregated series ready for a chart.
type View struct {
	Symbol    string              `json:"symbol"`
	Mode      Mode                `json:"mode"`
	Status    string              `json:"status"`
	Minutes   int                 `json:"minutes"`
	Buckets   []marketdata.Bucket `json:"buckets"`
	AvgTrades float64             `json:"avg_trades"`
}

type TradesView struct {
	Symbol    string             `json:"symbol"`
	Status    string             `json:"status"`
	WindowSec int                `json:"window_sec"`
	Trades    []marketdata.Trade `json:"trades"`
}

type ActivityView struct {
	Status  string                      `json:"status"`
	Minutes int                         `json:"minutes"`
	Symbols []marketdata.SymbolActivity `json:"symbols"`
}

// BuySell is the per-symbol buy/sell split shown next to the live charts.
type BuySell struct {
	Symbol       string  `json:"symbol"`
	BuyVolume    float64 `json:"buy_volume"`
	SellVolume   float64 `json:"sell_volume"`
	TradesPerMin float64 `json:"trades_per_min"`
}

type BuySellView struct {
	Status  string    `json:"status"`
	Minutes int       `json:"minutes"`
	Symbols []BuySell `json:"symbols"`
}

// Service builds dashboard series from the trade store and falls back to
// synthetic trades whenever the store can't answer.
type Service struct {
	store   interfaces.TradeReader
	gen     *mockdata.Generator
	symbols []string
	width   time.Duration
	liveMin int
	histMin int
	logger  *logger.Logger
	now     func() time.Time
}

// NewService creates a dashboard service. store may be nil, in which case
// every view is synthetic.
func NewService(store interfaces.TradeReader, gen *mockdata.Generator, cfg *config.Config, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		gen:     gen,
		symbols: cfg.Symbols,
		width:   cfg.BucketWidth,
		liveMin: cfg.LiveMinutes,
		histMin: cfg.HistMinutes,
		logger:  log.Component("dashboard"),
		now:     time.Now,
	}
}

func (s *Service) Live(ctx context.Context, symbol string, minutes int) View {
	if minutes <= 0 {
		minutes = s.liveMin
	}
	return s.storeView(ctx, ModeLive, symbol, minutes, liveTradesPerSec, liveStartPrice)
}

func (s *Service) Historical(ctx context.Context, symbol string, minutes int) View {
	if minutes <= 0 {
		minutes = s.histMin
	}
	return s.storeView(ctx, ModeHistorical, symbol, minutes, historicalTradesPerSec, historicalStartPrice)
}

func (s *Service) DemoLive() View {
	return s.syntheticView(ModeDemoLive, demoSymbol, StatusOK, demoLiveMinutes, liveTradesPerSec, liveStartPrice)
}

func (s *Service) DemoHistorical() View {
	return s.syntheticView(ModeDemoHistorical, demoSymbol, StatusOK, demoHistMinutes, demoHistTradesPerSec, historicalStartPrice)
}

// RecentTrades returns the latest trades for symbol, newest first.
func (s *Service) RecentTrades(ctx context.Context, symbol string, windowSec int) TradesView {
	if windowSec <= 0 {
		windowSec = 60
	}
	view := TradesView{Symbol: symbol, WindowSec: windowSec, Status: StatusOK}

	trades, err := s.recentFromStore(ctx, symbol, windowSec)
	if status, ok := s.fallback("live_trades", symbol, len(trades), err); !ok {
		view.Status = status
		trades = s.gen.Trades(symbol, windowSec, recentTradesPerSec, liveStartPrice, s.now().UTC())
		slices.Reverse(trades)
		if len(trades) > maxRecentTrades {
			trades = trades[:maxRecentTrades]
		}
	}
	view.Trades = trades
	return view
}

// TopSymbols ranks symbols by traded volume over the last minutes.
func (s *Service) TopSymbols(ctx context.Context, minutes, limit int) ActivityView {
	if minutes <= 0 {
		minutes = 10
	}
	if limit <= 0 {
		limit = 10
	}
	view := ActivityView{Minutes: minutes, Status: StatusOK}

	activity, err := s.activityFromStore(ctx, minutes, limit)
	if status, ok := s.fallback("top_symbols", "", len(activity), err); !ok {
		view.Status = status
		activity = s.gen.Activity(s.symbols)
		if len(activity) > limit {
			activity = activity[:limit]
		}
	}
	view.Symbols = activity
	return view
}

// LiveBuySell returns the buy/sell split of the top symbols over the last minutes.
func (s *Service) LiveBuySell(ctx context.Context, minutes, top int) BuySellView {
	if top <= 0 {
		top = 5
	}
	activity := s.TopSymbols(ctx, minutes, top)

	view := BuySellView{
		Status:  activity.Status,
		Minutes: activity.Minutes,
		Symbols: make([]BuySell, 0, len(activity.Symbols)),
	}
	for _, a := range activity.Symbols {
		view.Symbols = append(view.Symbols, BuySell{
			Symbol:       a.Symbol,
			BuyVolume:    a.BuyVolume,
			SellVolume:   a.SellVolume,
			TradesPerMin: float64(a.Trades) / float64(activity.Minutes),
		})
	}
	return view
}

func (s *Service) storeView(ctx context.Context, mode Mode, symbol string, minutes, perSecond int, startPrice float64) View {
	trades, err := s.tradesFromStore(ctx, symbol, minutes)
	if status, ok := s.fallback(string(mode), symbol, len(trades), err); !ok {
		return s.syntheticView(mode, symbol, status, minutes, perSecond, startPrice)
	}
	return s.buildView(mode, symbol, StatusOK, minutes, trades)
}

func (s *Service) syntheticView(mode Mode, symbol, status string, minutes, perSecond int, startPrice float64) View {
	trades := s.gen.Trades(symbol, minutes*60, perSecond, startPrice, s.now().UTC())
	return s.buildView(mode, symbol, status, minutes, trades)
}

func (s *Service) buildView(mode Mode, symbol, status string, minutes int, trades []marketdata.Trade) View {
	var buckets []marketdata.Bucket
	metrics.TimeFunc(metrics.AggregationDuration, func() {
		buckets = aggregator.Aggregate(trades, s.width, s.window(minutes))
	})
	metrics.BucketsEmittedTotal.WithLabelValues(string(mode)).Add(float64(len(buckets)))

	return View{
		Symbol:    symbol,
		Mode:      mode,
		Status:    status,
		Minutes:   minutes,
		Buckets:   buckets,
		AvgTrades: avgTrades(buckets),
	}
}

// window is the number of buckets that cover minutes
func (s *Service) window(minutes int) int {
	span := time.Duration(minutes) * time.Minute
	n := int(span / s.width)
	if span%s.width != 0 {
		n++
	}
	return n
}

// fallback reports whether a store result can be used. When it can't, the
// returned status explains which synthetic data is shown instead.
func (s *Service) fallback(view, symbol string, n int, err error) (string, bool) {
	var reason, status string
	switch {
	case errors.Is(err, errNoStore):
		reason, status = "no_store", StatusDemo
	case err != nil:
		reason, status = "error", StatusError
		s.logger.Warn("store query failed, serving demo data",
			logger.String("view", view),
			logger.Symbol(symbol),
			logger.Error(err))
	case n == 0:
		reason, status = "empty", StatusNoTrades
	default:
		return StatusOK, true
	}
	metrics.DashboardFallbacksTotal.WithLabelValues(view, reason).Inc()
	return status, false
}

func (s *Service) tradesFromStore(ctx context.Context, symbol string, minutes int) ([]marketdata.Trade, error) {
	if s.store == nil {
		return nil, errNoStore
	}
	since := s.now().Add(-time.Duration(minutes) * time.Minute)
	return s.store.TradesSince(ctx, symbol, since)
}

func (s *Service) recentFromStore(ctx context.Context, symbol string, windowSec int) ([]marketdata.Trade, error) {
	if s.store == nil {
		return nil, errNoStore
	}
	return s.store.RecentTrades(ctx, symbol, time.Duration(windowSec)*time.Second, maxRecentTrades)
}

func (s *Service) activityFromStore(ctx context.Context, minutes, limit int) ([]marketdata.SymbolActivity, error) {
	if s.store == nil {
		return nil, errNoStore
	}
	return s.store.TopSymbols(ctx, time.Duration(minutes)*time.Minute, limit)
}

func avgTrades(buckets []marketdata.Bucket) float64 {
	if len(buckets) == 0 {
		return 0
	}
	total := 0
	for _, b := range buckets {
		total += b.Trades
	}
	return float64(total) / float64(len(buckets))
}
