package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/config"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/mocks"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/mockdata"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/interfaces"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

var fixedNow = time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC)

func newTestService(store interfaces.TradeReader) *Service {
	cfg := &config.Config{
		Symbols:     []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		BucketWidth: time.Minute,
		LiveMinutes: 10,
		HistMinutes: 360,
	}
	gen := mockdata.NewGenerator(mockdata.Config{Symbols: cfg.Symbols, Seed: 7}, logger.NewNoOpLogger())
	s := NewService(store, gen, cfg, logger.NewNoOpLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func storeTrades() []marketdata.Trade {
	return []marketdata.Trade{
		{ID: 1, Symbol: "BTCUSDT", Price: 100, Quantity: 1, Timestamp: time.Date(2024, 5, 1, 12, 5, 10, 0, time.UTC)},
		{ID: 2, Symbol: "BTCUSDT", Price: 110, Quantity: 2, Timestamp: time.Date(2024, 5, 1, 12, 5, 40, 0, time.UTC), IsBuyerMaker: true},
		{ID: 3, Symbol: "BTCUSDT", Price: 105, Quantity: 1, Timestamp: time.Date(2024, 5, 1, 12, 7, 0, 0, time.UTC)},
		{ID: 4, Symbol: "ETHUSDT", Price: 3000, Quantity: 1, Timestamp: time.Date(2024, 5, 1, 12, 6, 0, 0, time.UTC)},
	}
}

func TestLive_FromStore(t *testing.T) {
	s := newTestService(mocks.NewMockTradeStore().SetTrades(storeTrades()))

	view := s.Live(context.Background(), "BTCUSDT", 0)

	if view.Status != StatusOK || view.Mode != ModeLive {
		t.Fatalf("unexpected status/mode: %q/%q", view.Status, view.Mode)
	}
	if view.Minutes != 10 {
		t.Errorf("expected default live minutes 10, got %d", view.Minutes)
	}
	if len(view.Buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(view.Buckets))
	}

	first := view.Buckets[0]
	if first.Open != 100 || first.Close != 110 || first.Trades != 2 {
		t.Errorf("unexpected first bucket: %+v", first)
	}
	if first.BuyVolume != 1 || first.SellVolume != 2 {
		t.Errorf("unexpected side volumes: buy=%v sell=%v", first.BuyVolume, first.SellVolume)
	}
	if view.AvgTrades != 1.5 {
		t.Errorf("expected avg trades 1.5, got %v", view.AvgTrades)
	}
}

func TestStoreView_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		store  interfaces.TradeReader
		status string
	}{
		{"no_store", nil, StatusDemo},
		{"read_error", mocks.NewMockTradeStore().SetReadError(errors.New("connection refused")), StatusError},
		{"empty", mocks.NewMockTradeStore(), StatusNoTrades},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestService(tc.store)

			live := s.Live(context.Background(), "BTCUSDT", 5)
			if live.Status != tc.status {
				t.Errorf("live: expected status %q, got %q", tc.status, live.Status)
			}
			if live.Mode != ModeLive || len(live.Buckets) == 0 || len(live.Buckets) > 5 {
				t.Fatalf("live: unexpected synthetic view: mode=%q buckets=%d", live.Mode, len(live.Buckets))
			}
			if live.Buckets[0].Open < 50000 {
				t.Errorf("live: synthetic prices should start near 65000, got %v", live.Buckets[0].Open)
			}

			hist := s.Historical(context.Background(), "BTCUSDT", 30)
			if hist.Status != tc.status || hist.Mode != ModeHistorical {
				t.Errorf("historical: unexpected status/mode %q/%q", hist.Status, hist.Mode)
			}
			if len(hist.Buckets) == 0 || len(hist.Buckets) > 30 {
				t.Errorf("historical: expected up to 30 buckets, got %d", len(hist.Buckets))
			}
		})
	}
}

func TestDemoViews(t *testing.T) {
	s := newTestService(nil)

	live := s.DemoLive()
	if live.Mode != ModeDemoLive || live.Minutes != 10 || live.Symbol != "BTCUSDT" {
		t.Errorf("unexpected demo live header: %+v", live)
	}
	if n := len(live.Buckets); n == 0 || n > 10 {
		t.Errorf("expected up to 10 demo live buckets, got %d", n)
	}
	if live.AvgTrades <= 0 {
		t.Error("expected positive avg trades")
	}

	hist := s.DemoHistorical()
	if hist.Mode != ModeDemoHistorical || hist.Minutes != 360 {
		t.Errorf("unexpected demo historical header: mode=%q minutes=%d", hist.Mode, hist.Minutes)
	}
	if n := len(hist.Buckets); n < 359 || n > 360 {
		t.Errorf("expected ~360 demo historical buckets, got %d", n)
	}
	for i := 1; i < len(hist.Buckets); i++ {
		if !hist.Buckets[i].Start.After(hist.Buckets[i-1].Start) {
			t.Fatalf("buckets not ascending at %d", i)
		}
	}
}

func TestRecentTrades(t *testing.T) {
	t.Run("from_store", func(t *testing.T) {
		s := newTestService(mocks.NewMockTradeStore().SetTrades(storeTrades()))
		view := s.RecentTrades(context.Background(), "BTCUSDT", 0)
		if view.Status != StatusOK || view.WindowSec != 60 {
			t.Errorf("unexpected header: %q %d", view.Status, view.WindowSec)
		}
		if len(view.Trades) != 3 || view.Trades[0].ID != 3 {
			t.Errorf("expected 3 trades newest first, got %+v", view.Trades)
		}
	})

	t.Run("synthetic", func(t *testing.T) {
		s := newTestService(nil)
		view := s.RecentTrades(context.Background(), "ETHUSDT", 30)
		if view.Status != StatusDemo {
			t.Errorf("expected demo status, got %q", view.Status)
		}
		if len(view.Trades) != 240 {
			t.Fatalf("expected 30s * 8/s trades, got %d", len(view.Trades))
		}
		for i := 1; i < len(view.Trades); i++ {
			if view.Trades[i].Timestamp.After(view.Trades[i-1].Timestamp) {
				t.Fatalf("trades not newest first at %d", i)
			}
		}
		if view.Trades[0].Symbol != "ETHUSDT" {
			t.Errorf("unexpected symbol %q", view.Trades[0].Symbol)
		}
	})

	t.Run("synthetic_capped", func(t *testing.T) {
		s := newTestService(nil)
		if n := len(s.RecentTrades(context.Background(), "BTCUSDT", 600).Trades); n != maxRecentTrades {
			t.Errorf("expected %d trades, got %d", maxRecentTrades, n)
		}
	})
}

func TestTopSymbolsAndBuySell(t *testing.T) {
	store := mocks.NewMockTradeStore().SetActivity([]marketdata.SymbolActivity{
		{Symbol: "BTCUSDT", Volume: 10, Trades: 50, BuyVolume: 6, SellVolume: 4},
		{Symbol: "ETHUSDT", Volume: 5, Trades: 20, BuyVolume: 1, SellVolume: 4},
	})
	s := newTestService(store)

	top := s.TopSymbols(context.Background(), 0, 1)
	if top.Status != StatusOK || top.Minutes != 10 || len(top.Symbols) != 1 {
		t.Fatalf("unexpected top symbols: %+v", top)
	}
	if store.LastWindow() != 10*time.Minute {
		t.Errorf("expected 10m window, got %v", store.LastWindow())
	}

	flows := s.LiveBuySell(context.Background(), 5, 0)
	if len(flows.Symbols) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(flows.Symbols))
	}
	if got := flows.Symbols[0].TradesPerMin; got != 10 {
		t.Errorf("expected 50 trades / 5 min = 10, got %v", got)
	}
	if flows.Symbols[1].SellVolume != 4 {
		t.Errorf("unexpected sell volume %v", flows.Symbols[1].SellVolume)
	}

	demo := newTestService(nil).TopSymbols(context.Background(), 10, 2)
	if demo.Status != StatusDemo || len(demo.Symbols) != 2 {
		t.Errorf("expected 2 synthetic symbols in demo mode, got %+v", demo)
	}
}

func TestWindow(t *testing.T) {
	s := newTestService(nil)
	tests := []struct {
		width   time.Duration
		minutes int
		want    int
	}{
		{time.Minute, 10, 10},
		{5 * time.Minute, 12, 3},
		{30 * time.Second, 2, 4},
	}
	for _, tc := range tests {
		s.width = tc.width
		if got := s.window(tc.minutes); got != tc.want {
			t.Errorf("window(%v, %d) = %d, want %d", tc.width, tc.minutes, got, tc.want)
		}
	}
}
