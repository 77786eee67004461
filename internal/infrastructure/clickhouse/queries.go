package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/metrics"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

const (
	maxRecentTrades = 500
	maxTopSymbols   = 100
	maxTradesSince  = 2_000_000
)

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func (c *Client) TradesSince(ctx context.Context, symbol string, since time.Time) ([]marketdata.Trade, error) {
	defer metrics.TimeQuery("trades_since").ObserveDuration()

	q := `
SELECT trade_id, price, qty, ts, is_buyer_maker
FROM ` + TradesTable + `
WHERE symbol = ?
  AND ts >= ?
ORDER BY ts, trade_id
LIMIT ` + strconv.Itoa(maxTradesSince)

	rows, err := c.db.QueryContext(ctx, q, symbol, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query trades since: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows, symbol, 1024)
}

func (c *Client) RecentTrades(ctx context.Context, symbol string, window time.Duration, limit int) ([]marketdata.Trade, error) {
	defer metrics.TimeQuery("recent_trades").ObserveDuration()
	limit = clampLimit(limit, maxRecentTrades, maxRecentTrades)

	q := `
SELECT trade_id, price, qty, ts, is_buyer_maker
FROM ` + TradesTable + `
WHERE symbol = ?
  AND ts >= ?
ORDER BY ts DESC, trade_id DESC
LIMIT ` + strconv.Itoa(limit)

	rows, err := c.db.QueryContext(ctx, q, symbol, c.now().Add(-window).UTC())
	if err != nil {
		return nil, fmt.Errorf("query recent trades: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows, symbol, limit)
}

func (c *Client) TopSymbols(ctx context.Context, window time.Duration, limit int) ([]marketdata.SymbolActivity, error) {
	defer metrics.TimeQuery("top_symbols").ObserveDuration()
	limit = clampLimit(limit, 10, maxTopSymbols)

	q := `
SELECT
  symbol,
  sum(qty) AS volume,
  count() AS trades,
  sumIf(qty, is_buyer_maker = 0) AS buy_vol,
  sumIf(qty, is_buyer_maker = 1) AS sell_vol
FROM ` + TradesTable + `
WHERE ts >= ?
GROUP BY symbol
ORDER BY volume DESC
LIMIT ` + strconv.Itoa(limit)

	rows, err := c.db.QueryContext(ctx, q, c.now().Add(-window).UTC())
	if err != nil {
		return nil, fmt.Errorf("query top symbols: %w", err)
	}
	defer rows.Close()

	out := make([]marketdata.SymbolActivity, 0, limit)
	for rows.Next() {
		var (
			a      marketdata.SymbolActivity
			trades uint64
		)
		if err := rows.Scan(&a.Symbol, &a.Volume, &trades, &a.BuyVolume, &a.SellVolume); err != nil {
			return nil, err
		}
		a.Trades = int64(trades)
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanTrades(rows *sql.Rows, symbol string, capHint int) ([]marketdata.Trade, error) {
	out := make([]marketdata.Trade, 0, capHint)
	for rows.Next() {
		var (
			id    uint64
			maker uint8
			t     = marketdata.Trade{Symbol: symbol}
		)
		if err := rows.Scan(&id, &t.Price, &t.Quantity, &t.Timestamp, &maker); err != nil {
			return nil, err
		}
		t.ID = int64(id)
		t.IsBuyerMaker = maker == 1
		t.Timestamp = t.Timestamp.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}
