package clickhouse

import (
	"context"
	"fmt"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

const insertSQL = `
INSERT INTO ` + TradesTable + `
(symbol, trade_id, price, qty, ts, is_buyer_maker)
`

// InsertTrades appends trades to a single native batch and sends it.
func (c *Client) InsertTrades(ctx context.Context, trades []marketdata.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	if c.conn == nil {
		return fmt.Errorf("no clickhouse conn")
	}

	b, err := c.conn.PrepareBatch(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		if err := b.Append(
			t.Symbol,
			uint64(t.ID),
			t.Price,
			t.Quantity,
			t.Timestamp.UTC(),
			boolToUInt8(t.IsBuyerMaker),
		); err != nil {
			_ = b.Abort()
			return fmt.Errorf("append trade %d: %w", t.ID, err)
		}
	}

	return b.Send()
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
