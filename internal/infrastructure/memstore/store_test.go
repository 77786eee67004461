package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func trade(id int64, symbol string, offset time.Duration, qty float64, maker bool) marketdata.Trade {
	return marketdata.Trade{
		ID:           id,
		Symbol:       symbol,
		Price:        100,
		Quantity:     qty,
		Timestamp:    base.Add(offset),
		IsBuyerMaker: maker,
	}
}

func newStore(max int) *Store {
	s := New(max)
	s.now = func() time.Time { return base }
	return s
}

func TestInsertTrades_EvictsOldest(t *testing.T) {
	s := newStore(3)
	ctx := context.Background()

	_ = s.InsertTrades(ctx, []marketdata.Trade{
		trade(1, "BTCUSDT", -4*time.Second, 1, false),
		trade(2, "BTCUSDT", -3*time.Second, 1, false),
	})
	_ = s.InsertTrades(ctx, []marketdata.Trade{
		trade(3, "BTCUSDT", -2*time.Second, 1, false),
		trade(4, "BTCUSDT", -1*time.Second, 1, false),
	})

	if s.Len() != 3 {
		t.Fatalf("expected 3 trades retained, got %d", s.Len())
	}
	got, _ := s.TradesSince(ctx, "BTCUSDT", base.Add(-time.Hour))
	if len(got) != 3 || got[0].ID != 2 || got[2].ID != 4 {
		t.Errorf("expected trades 2..4, got %+v", got)
	}
}

func TestTradesSince_FiltersAndSorts(t *testing.T) {
	s := newStore(100)
	ctx := context.Background()
	_ = s.InsertTrades(ctx, []marketdata.Trade{
		trade(3, "BTCUSDT", -10*time.Second, 1, false),
		trade(1, "BTCUSDT", -70*time.Second, 1, false),
		trade(2, "ETHUSDT", -20*time.Second, 1, false),
		trade(4, "BTCUSDT", -30*time.Second, 1, false),
	})

	got, err := s.TradesSince(ctx, "BTCUSDT", base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != 4 || got[1].ID != 3 {
		t.Errorf("expected [4 3], got %+v", got)
	}
}

func TestRecentTrades_NewestFirstWithLimit(t *testing.T) {
	s := newStore(100)
	ctx := context.Background()
	for i := int64(0); i < 10; i++ {
		_ = s.InsertTrades(ctx, []marketdata.Trade{trade(i, "SOLUSDT", -time.Duration(i)*time.Second, 1, false)})
	}

	got, _ := s.RecentTrades(ctx, "SOLUSDT", 5*time.Second, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(got))
	}
	if got[0].ID != 0 || got[1].ID != 1 || got[2].ID != 2 {
		t.Errorf("expected newest first, got %+v", got)
	}
}

func TestTopSymbols(t *testing.T) {
	s := newStore(100)
	ctx := context.Background()
	_ = s.InsertTrades(ctx, []marketdata.Trade{
		trade(1, "BTCUSDT", -time.Second, 2, false),
		trade(2, "BTCUSDT", -time.Second, 1, true),
		trade(3, "ETHUSDT", -time.Second, 5, true),
		trade(4, "SOLUSDT", -time.Second, 0.5, false),
		trade(5, "SOLUSDT", -time.Hour, 100, false),
	})

	got, err := s.TopSymbols(ctx, 10*time.Minute, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Symbol != "ETHUSDT" || got[0].SellVolume != 5 || got[0].BuyVolume != 0 {
		t.Errorf("unexpected first row %+v", got[0])
	}
	if got[1].Symbol != "BTCUSDT" || got[1].Trades != 2 || got[1].BuyVolume != 2 || got[1].SellVolume != 1 {
		t.Errorf("unexpected second row %+v", got[1])
	}
}

func TestStore_CancelledContext(t *testing.T) {
	s := newStore(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.InsertTrades(ctx, []marketdata.Trade{trade(1, "BTCUSDT", 0, 1, false)}); err == nil {
		t.Error("expected error on cancelled context")
	}
	if _, err := s.TradesSince(ctx, "BTCUSDT", base); err == nil {
		t.Error("expected error on cancelled context")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := newStore(1000)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = s.InsertTrades(ctx, []marketdata.Trade{trade(int64(w*1000+i), "BTCUSDT", 0, 1, i%2 == 0)})
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, _ = s.TopSymbols(ctx, time.Minute, 5)
			}
		}()
	}
	wg.Wait()

	if s.Len() != 400 {
		t.Errorf("expected 400 trades, got %d", s.Len())
	}
}
