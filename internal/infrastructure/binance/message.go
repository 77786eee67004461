package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
	"github.com/shopspring/decimal"
)

// combinedMessage wraps every payload on the combined stream endpoint
type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// encoding/json matches keys case-insensitively, so "E" and "M" need their
// own fields or they land in "e" and "m".
type tradeEvent struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
	Ignore       bool   `json:"M"`
}

var ErrNotTrade = errors.New("not a trade event")

// StreamURL builds the combined stream URL for the @trade streams of symbols.
func StreamURL(base string, symbols []string) string {
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(s)+"@trade")
	}
	return strings.TrimRight(base, "/") + "/stream?streams=" + strings.Join(streams, "/")
}

// ParseTradeMessage decodes a combined-stream trade message.
func ParseTradeMessage(msg []byte) (marketdata.Trade, error) {
	var env combinedMessage
	if err := json.Unmarshal(msg, &env); err != nil {
		return marketdata.Trade{}, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Data) == 0 {
		return marketdata.Trade{}, ErrNotTrade
	}

	var ev tradeEvent
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		return marketdata.Trade{}, fmt.Errorf("decode trade: %w", err)
	}
	if ev.EventType != "" && ev.EventType != "trade" {
		return marketdata.Trade{}, ErrNotTrade
	}
	if ev.Symbol == "" {
		return marketdata.Trade{}, errors.New("trade without symbol")
	}
	if ev.TradeTime <= 0 {
		return marketdata.Trade{}, errors.New("trade without time")
	}

	price, err := decimal.NewFromString(ev.Price)
	if err != nil {
		return marketdata.Trade{}, fmt.Errorf("bad price %q: %w", ev.Price, err)
	}
	if !price.IsPositive() {
		return marketdata.Trade{}, fmt.Errorf("non-positive price %s", price)
	}
	qty, err := decimal.NewFromString(ev.Quantity)
	if err != nil {
		return marketdata.Trade{}, fmt.Errorf("bad quantity %q: %w", ev.Quantity, err)
	}
	if qty.IsNegative() {
		return marketdata.Trade{}, fmt.Errorf("negative quantity %s", qty)
	}

	return marketdata.Trade{
		ID:           ev.TradeID,
		Symbol:       strings.ToUpper(ev.Symbol),
		Price:        price.InexactFloat64(),
		Quantity:     qty.InexactFloat64(),
		Timestamp:    time.UnixMilli(ev.TradeTime).UTC(),
		IsBuyerMaker: ev.IsBuyerMaker,
	}, nil
}
