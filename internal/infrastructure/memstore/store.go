package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

// Store keeps the most recent trades in memory. When full, the oldest
// inserted trades are evicted first. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	trades []marketdata.Trade
	max    int
	now    func() time.Time
}

func New(max int) *Store {
	if max <= 0 {
		max = 200_000
	}
	return &Store{
		trades: make([]marketdata.Trade, 0, min(max, 4096)),
		max:    max,
		now:    time.Now,
	}
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trades)
}

func (s *Store) InsertTrades(ctx context.Context, trades []marketdata.Trade) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, trades...)
	if over := len(s.trades) - s.max; over > 0 {
		s.trades = slices.Delete(s.trades, 0, over)
	}
	return nil
}

func (s *Store) TradesSince(ctx context.Context, symbol string, since time.Time) ([]marketdata.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := s.filter(symbol, since)
	slices.SortStableFunc(out, func(a, b marketdata.Trade) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) RecentTrades(ctx context.Context, symbol string, window time.Duration, limit int) ([]marketdata.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := s.filter(symbol, s.now().Add(-window))
	slices.SortStableFunc(out, func(a, b marketdata.Trade) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) TopSymbols(ctx context.Context, window time.Duration, limit int) ([]marketdata.SymbolActivity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	since := s.now().Add(-window)

	s.mu.RLock()
	bySymbol := make(map[string]*marketdata.SymbolActivity)
	for _, t := range s.trades {
		if t.Timestamp.Before(since) {
			continue
		}
		a, ok := bySymbol[t.Symbol]
		if !ok {
			a = &marketdata.SymbolActivity{Symbol: t.Symbol}
			bySymbol[t.Symbol] = a
		}
		a.Trades++
		a.Volume += t.Quantity
		if t.Side() == marketdata.SideBuy {
			a.BuyVolume += t.Quantity
		} else {
			a.SellVolume += t.Quantity
		}
	}
	s.mu.RUnlock()

	out := make([]marketdata.SymbolActivity, 0, len(bySymbol))
	for _, a := range bySymbol {
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b marketdata.SymbolActivity) int {
		if c := cmp.Compare(b.Volume, a.Volume); c != 0 {
			return c
		}
		return cmp.Compare(a.Symbol, b.Symbol)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) filter(symbol string, since time.Time) []marketdata.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]marketdata.Trade, 0)
	for _, t := range s.trades {
		if t.Symbol == symbol && !t.Timestamp.Before(since) {
			out = append(out, t)
		}
	}
	return out
}
