package poller

import (
	"context"
	"sync"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/dashboard"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/metrics"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/interfaces"
)

type LiveSource interface {
	Live(ctx context.Context, symbol string, minutes int) dashboard.View
}

type Publisher interface {
	Publish(ctx context.Context, view dashboard.View) error
}

// Poller periodically refreshes the live view of every symbol, keeps the
// latest snapshot in memory, hands it to the publisher and counts trades
// that arrived since the previous refresh.
type Poller struct {
	source    LiveSource
	store     interfaces.TradeReader
	publisher Publisher
	symbols   []string
	minutes   int
	interval  time.Duration
	newTicker func(time.Duration) *time.Ticker
	logger    *logger.Logger
	now       func() time.Time

	mu        sync.RWMutex
	snapshots map[string]dashboard.View
	lastSeen  map[string]watermark
	ingested  int64
	lastPoll  time.Time
}

// NewPoller creates a poller. store and publisher are optional.
func NewPoller(
	source LiveSource,
	store interfaces.TradeReader,
	publisher Publisher,
	symbols []string,
	minutes int,
	interval time.Duration,
	log *logger.Logger,
) *Poller {
	return NewPollerWithTicker(source, store, publisher, symbols, minutes, interval, log, time.NewTicker)
}

func NewPollerWithTicker(
	source LiveSource,
	store interfaces.TradeReader,
	publisher Publisher,
	symbols []string,
	minutes int,
	interval time.Duration,
	log *logger.Logger,
	newTicker func(time.Duration) *time.Ticker,
) *Poller {
	return &Poller{
		source:    source,
		store:     store,
		publisher: publisher,
		symbols:   append([]string(nil), symbols...),
		minutes:   minutes,
		interval:  interval,
		newTicker: newTicker,
		logger:    log.Component("poller"),
		now:       time.Now,
		snapshots: make(map[string]dashboard.View, len(symbols)),
		lastSeen:  make(map[string]watermark, len(symbols)),
	}
}

// Start refreshes immediately and then on every tick until ctx is done.
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("poller starting",
		logger.Strings("symbols", p.symbols),
		logger.Duration("interval", p.interval))

	ticker := p.newTicker(p.interval)
	defer ticker.Stop()

	p.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped", logger.Int64("ingested", p.Ingested()))
			return nil
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	metrics.PollsTotal.Inc()

	for _, symbol := range p.symbols {
		if ctx.Err() != nil {
			return
		}

		log := p.logger.ForSymbol(symbol)
		view := p.source.Live(ctx, symbol, p.minutes)
		newTrades := p.countNew(ctx, symbol, view.Status, log)

		p.mu.Lock()
		p.snapshots[symbol] = view
		p.ingested += newTrades
		ingested := p.ingested
		p.lastPoll = p.now().UTC()
		p.mu.Unlock()
		metrics.IngestedTradesGauge.Set(float64(ingested))

		if p.publisher != nil {
			if err := p.publisher.Publish(ctx, view); err != nil {
				log.Warn("failed to publish live view", logger.Error(err))
			}
		}

		log.Debug("refreshed live view",
			logger.String("status", view.Status),
			logger.Int("buckets", len(view.Buckets)),
			logger.Int64("new_trades", newTrades))
	}
}

// countNew returns the number of stored trades for symbol not counted by an
// earlier refresh. Synthetic views are never counted.
func (p *Poller) countNew(ctx context.Context, symbol, status string, log *logger.Logger) int64 {
	if p.store == nil || status != dashboard.StatusOK {
		return 0
	}

	p.mu.RLock()
	mark, seen := p.lastSeen[symbol]
	p.mu.RUnlock()

	// the query is inclusive so late trades sharing the mark's millisecond
	// are still seen; ids already counted at the mark are skipped
	since := mark.at
	if !seen {
		since = p.now().Add(-p.interval)
	}

	trades, err := p.store.TradesSince(ctx, symbol, since)
	if err != nil {
		log.Warn("failed to count new trades", logger.Error(err))
		return 0
	}

	next := watermark{at: mark.at, ids: cloneIDs(mark.ids)}
	var count int64
	for _, t := range trades {
		if t.Timestamp.Equal(mark.at) {
			if _, ok := mark.ids[t.ID]; ok {
				continue
			}
		}
		count++
		switch {
		case t.Timestamp.After(next.at):
			next = watermark{at: t.Timestamp, ids: map[int64]struct{}{t.ID: {}}}
		case t.Timestamp.Equal(next.at):
			next.ids[t.ID] = struct{}{}
		}
	}
	if count == 0 {
		return 0
	}

	p.mu.Lock()
	p.lastSeen[symbol] = next
	p.mu.Unlock()

	return count
}

// watermark is the newest trade time counted for a symbol and the trade ids
// counted at exactly that time.
type watermark struct {
	at  time.Time
	ids map[int64]struct{}
}

func cloneIDs(in map[int64]struct{}) map[int64]struct{} {
	out := make(map[int64]struct{}, len(in)+1)
	for id := range in {
		out[id] = struct{}{}
	}
	return out
}

// Snapshot returns the latest live view of symbol.
func (p *Poller) Snapshot(symbol string) (dashboard.View, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.snapshots[symbol]
	return v, ok
}

func (p *Poller) Ingested() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ingested
}

func (p *Poller) ResetIngested() {
	p.mu.Lock()
	p.ingested = 0
	p.mu.Unlock()
	metrics.IngestedTradesGauge.Set(0)
}

func (p *Poller) LastPoll() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastPoll
}

func (p *Poller) Symbols() []string {
	return append([]string(nil), p.symbols...)
}
