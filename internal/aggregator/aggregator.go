package aggregator

import (
	"slices"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

// Aggregate reduces trades into fixed-width time buckets and returns the
// summaries ordered by bucket start. Only the last window buckets are kept
// when window > 0. Buckets without trades are never emitted.
//
// The input slice is not modified. Trades are folded in chronological order
// (stable for equal timestamps), so Open and Close do not depend on the order
// in which the trades were passed in.
func Aggregate(trades []marketdata.Trade, width time.Duration, window int) []marketdata.Bucket {
	if len(trades) == 0 {
		return []marketdata.Bucket{}
	}

	widthMs := width.Milliseconds()
	if widthMs < 1 {
		widthMs = 1
	}

	sorted := make([]marketdata.Trade, len(trades))
	copy(sorted, trades)
	slices.SortStableFunc(sorted, func(a, b marketdata.Trade) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	accs := make(map[int64]*bucketAcc)
	keys := make([]int64, 0)
	for _, t := range sorted {
		key := bucketKey(t.Timestamp, widthMs)
		acc, ok := accs[key]
		if !ok {
			acc = &bucketAcc{start: key}
			accs[key] = acc
			keys = append(keys, key)
		}
		acc.add(t)
	}

	slices.Sort(keys)
	if window > 0 && len(keys) > window {
		keys = keys[len(keys)-window:]
	}

	out := make([]marketdata.Bucket, 0, len(keys))
	for _, key := range keys {
		out = append(out, accs[key].summary())
	}
	return out
}

// bucketKey floors the trade time (in unix ms) to a multiple of widthMs.
func bucketKey(ts time.Time, widthMs int64) int64 {
	ms := ts.UnixMilli()
	rem := ms % widthMs
	if rem < 0 {
		rem += widthMs
	}
	return ms - rem
}

type bucketAcc struct {
	start   int64
	bucket  marketdata.Bucket
	buyPV   float64
	sellPV  float64
	touched bool
}

func (a *bucketAcc) add(t marketdata.Trade) {
	b := &a.bucket
	if !a.touched {
		b.Open, b.High, b.Low = t.Price, t.Price, t.Price
		a.touched = true
	}
	if t.Price > b.High {
		b.High = t.Price
	}
	if t.Price < b.Low {
		b.Low = t.Price
	}
	b.Close = t.Price
	b.Trades++

	switch t.Side() {
	case marketdata.SideSell:
		b.SellVolume += t.Quantity
		a.sellPV += t.Price * t.Quantity
	default:
		b.BuyVolume += t.Quantity
		a.buyPV += t.Price * t.Quantity
	}
}

func (a *bucketAcc) summary() marketdata.Bucket {
	b := a.bucket
	b.Start = time.UnixMilli(a.start).UTC()

	// a side without volume shows the open so line charts have no gaps
	b.AvgBuyPrice = b.Open
	if b.BuyVolume > 0 {
		b.AvgBuyPrice = a.buyPV / b.BuyVolume
	}
	b.AvgSellPrice = b.Open
	if b.SellVolume > 0 {
		b.AvgSellPrice = a.sellPV / b.SellVolume
	}
	return b
}
