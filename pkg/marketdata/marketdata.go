package marketdata

import (
	"time"
)

type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Trade is a single executed trade tick as delivered by the upstream feed.
type Trade struct {
	ID           int64     `json:"trade_id"`
	Symbol       string    `json:"symbol"`
	Price        float64   `json:"price"`
	Quantity     float64   `json:"qty"`
	Timestamp    time.Time `json:"ts"`
	IsBuyerMaker bool      `json:"is_buyer_maker"`
}

// Side classifies the trade. A buyer-maker trade means the taker sold,
// so it counts as a sell.
func (t Trade) Side() Side {
	if t.IsBuyerMaker {
		return SideSell
	}
	return SideBuy
}

// Bucket summarizes all trades whose timestamp falls into [Start, Start+width).
type Bucket struct {
	Start        time.Time `json:"minute"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Trades       int       `json:"trades"`
	BuyVolume    float64   `json:"buy_vol"`
	SellVolume   float64   `json:"sell_vol"`
	AvgBuyPrice  float64   `json:"avg_buy"`
	AvgSellPrice float64   `json:"avg_sell"`
}

func (b Bucket) Volume() float64 {
	return b.BuyVolume + b.SellVolume
}

// SymbolActivity is the per-symbol volume breakdown over a lookback window.
type SymbolActivity struct {
	Symbol     string  `json:"symbol"`
	Volume     float64 `json:"volume"`
	Trades     int64   `json:"trades"`
	BuyVolume  float64 `json:"buy_vol"`
	SellVolume float64 `json:"sell_vol"`
}
