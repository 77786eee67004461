package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/config"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/metrics"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/utils"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/interfaces"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

const finalFlushTimeout = 5 * time.Second

// Status is a point-in-time view of the collector for the control plane.
type Status struct {
	Running       bool       `json:"running"`
	State         State      `json:"state"`
	RunID         string     `json:"run_id,omitempty"`
	Feed          string     `json:"feed"`
	Store         string     `json:"store"`
	Table         string     `json:"table,omitempty"`
	Symbols       []string   `json:"symbols"`
	BatchSize     int        `json:"batch_size"`
	FlushEverySec float64    `json:"flush_every_sec"`
	InsertedRows  int64      `json:"inserted_rows"`
	Buffered      int        `json:"buffered"`
	StartedAt     *time.Time `json:"started_at"`
	LastFlush     *time.Time `json:"last_flush"`
	LastError     *string    `json:"last_error"`
}

// Collector subscribes to a trade feed and writes trades to the store in
// batches. It is started and stopped through the control plane.
type Collector struct {
	client    interfaces.MarketDataClient
	store     interfaces.TradeStore
	kafkaChan chan<- marketdata.Trade
	newTicker func(time.Duration) *time.Ticker
	retry     utils.RetryConfig
	logger    *logger.Logger

	feed       string
	symbols    []string
	batchSize  int
	flushEvery time.Duration
	chanBuff   int

	mu        sync.Mutex
	state     State
	runID     string
	inserted  int64
	buffered  int
	startedAt time.Time
	lastFlush time.Time
	lastErr   string
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewCollector(
	client interfaces.MarketDataClient,
	store interfaces.TradeStore,
	cfg *config.Config,
	log *logger.Logger,
) *Collector {
	return NewCollectorWithTicker(client, store, cfg, log, time.NewTicker)
}

func NewCollectorWithTicker(
	client interfaces.MarketDataClient,
	store interfaces.TradeStore,
	cfg *config.Config,
	log *logger.Logger,
	newTicker func(time.Duration) *time.Ticker,
) *Collector {
	return &Collector{
		client:     client,
		store:      store,
		newTicker:  newTicker,
		retry:      utils.DefaultInsertRetryConfig(),
		logger:     log.Component("collector"),
		feed:       cfg.Feed,
		symbols:    append([]string(nil), cfg.Symbols...),
		batchSize:  cfg.BatchSize,
		flushEvery: cfg.FlushEvery,
		chanBuff:   cfg.TradesChanBuff,
		state:      StateIdle,
	}
}

// WithKafka forwards every collected trade to ch without blocking
func (c *Collector) WithKafka(ch chan<- marketdata.Trade) *Collector {
	c.kafkaChan = ch
	return c
}

// WithRetryConfig overrides the insert retry policy
func (c *Collector) WithRetryConfig(cfg utils.RetryConfig) *Collector {
	c.retry = cfg
	return c
}

// Start launches a collection run. It returns false when a run is already
// starting, running or stopping. The run outlives ctx only until ctx is done.
func (c *Collector) Start(ctx context.Context) bool {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.state = StateStarting
	c.runID = uuid.NewString()
	c.lastErr = ""
	c.startedAt = time.Now().UTC()
	c.cancel = cancel
	c.done = done
	runID := c.runID
	c.mu.Unlock()

	c.logger.Info("collector starting",
		logger.RunID(runID),
		logger.String("feed", c.feed),
		logger.Strings("symbols", c.symbols),
		logger.Int("batch_size", c.batchSize),
		logger.Duration("flush_every", c.flushEvery))

	go c.run(runCtx, done, c.logger.With(logger.RunID(runID)))
	return true
}

// Stop cancels the current run and waits for its final flush. It returns
// false when nothing is starting or running.
func (c *Collector) Stop() bool {
	c.mu.Lock()
	if c.state != StateRunning && c.state != StateStarting {
		c.mu.Unlock()
		return false
	}
	c.state = StateStopping
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	c.logger.Info("collector stopping")
	cancel()
	<-done
	return true
}

func (c *Collector) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Running:       c.state == StateRunning,
		State:         c.state,
		RunID:         c.runID,
		Feed:          c.feed,
		Store:         c.store.Name(),
		Symbols:       append([]string(nil), c.symbols...),
		BatchSize:     c.batchSize,
		FlushEverySec: c.flushEvery.Seconds(),
		InsertedRows:  c.inserted,
		Buffered:      c.buffered,
	}
	if t, ok := c.store.(interface{ Table() string }); ok {
		st.Table = t.Table()
	}
	if !c.startedAt.IsZero() {
		started := c.startedAt
		st.StartedAt = &started
	}
	if !c.lastFlush.IsZero() {
		flushed := c.lastFlush
		st.LastFlush = &flushed
	}
	if c.lastErr != "" {
		errStr := c.lastErr
		st.LastError = &errStr
	}
	return st
}

func (c *Collector) run(ctx context.Context, done chan struct{}, log *logger.Logger) {
	var runErr error
	defer func() {
		if err := c.client.Close(); err != nil {
			log.Warn("error closing market data client", logger.Error(err))
		}
		c.finish(runErr, log)
		close(done)
	}()

	tradeChan := make(chan marketdata.Trade, c.chanBuff)
	if err := c.client.SubscribeToSymbols(ctx, tradeChan, c.symbols); err != nil {
		log.Error("failed to subscribe to market data", logger.Error(err))
		runErr = err
		return
	}

	c.mu.Lock()
	if c.state == StateStarting {
		c.state = StateRunning
	}
	c.mu.Unlock()
	metrics.CollectorRunning.Set(1)
	log.Info("collector running")

	ticker := c.newTicker(c.flushEvery)
	defer ticker.Stop()

	buf := make([]marketdata.Trade, 0, c.batchSize)
	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case t := <-tradeChan:
					buf = append(buf, t)
					c.forward(t)
				default:
					break drain
				}
			}
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
			runErr = c.flush(flushCtx, buf, log)
			cancel()
			return

		case t := <-tradeChan:
			buf = append(buf, t)
			c.forward(t)
			c.setBuffered(len(buf))
			if len(buf) >= c.batchSize {
				if err := c.flush(ctx, buf, log); err != nil {
					runErr = err
					return
				}
				buf = make([]marketdata.Trade, 0, c.batchSize)
			}

		case <-ticker.C:
			if len(buf) == 0 {
				continue
			}
			if err := c.flush(ctx, buf, log); err != nil {
				runErr = err
				return
			}
			buf = make([]marketdata.Trade, 0, c.batchSize)
		}
	}
}

// flush writes buf to the store with retries and records the outcome.
func (c *Collector) flush(ctx context.Context, buf []marketdata.Trade, log *logger.Logger) error {
	if len(buf) == 0 {
		return nil
	}

	timer := metrics.NewTimer(metrics.TradeInsertDuration)
	err := utils.RetryWithConfig(ctx, func(ctx context.Context) error {
		return c.store.InsertTrades(ctx, buf)
	}, c.retry, log)
	timer.ObserveDuration()

	if err != nil {
		metrics.TradeInsertErrorsTotal.Inc()
		log.Error("batch insert failed",
			logger.Error(err),
			logger.Int("rows", len(buf)))
		return err
	}

	metrics.TradesInsertedTotal.Add(float64(len(buf)))
	c.mu.Lock()
	c.inserted += int64(len(buf))
	c.lastFlush = time.Now().UTC()
	c.buffered = 0
	c.mu.Unlock()
	metrics.CollectorBufferSize.Set(0)

	log.Debug("flushed batch", logger.Int("rows", len(buf)))
	return nil
}

func (c *Collector) forward(t marketdata.Trade) {
	if c.kafkaChan == nil {
		return
	}
	select {
	case c.kafkaChan <- t:
	default:
		metrics.KafkaTradesDroppedTotal.Inc()
	}
}

func (c *Collector) setBuffered(n int) {
	c.mu.Lock()
	c.buffered = n
	c.mu.Unlock()
	metrics.CollectorBufferSize.Set(float64(n))
}

func (c *Collector) finish(err error, log *logger.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.lastErr = err.Error()
	}
	c.state = StateIdle
	c.cancel = nil
	metrics.CollectorRunning.Set(0)

	log.Info("collector stopped",
		logger.Int64("inserted_rows", c.inserted),
		logger.Bool("failed", c.lastErr != ""))
}
