package binance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/config"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/metrics"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/utils"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

const (
	feedName    = "binance"
	readTimeout = 2 * time.Minute
	dialTimeout = 10 * time.Second
)

type Client struct {
	baseURL string
	dialer  *websocket.Dialer
	retry   utils.RetryConfig
	logger  *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		baseURL: cfg.BinanceWSURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: dialTimeout,
		},
		retry:  utils.DefaultReconnectRetryConfig(),
		logger: log.Component("binance"),
	}
}

// SubscribeToSymbols dials the combined trade stream and forwards trades to
// tradeChan in the background, reconnecting until ctx is done or Close is called.
func (c *Client) SubscribeToSymbols(ctx context.Context, tradeChan chan<- marketdata.Trade, symbols []string) error {
	if len(symbols) == 0 {
		return errors.New("no symbols to subscribe to")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return errors.New("already subscribed")
	}

	streamURL := StreamURL(c.baseURL, symbols)
	conn, err := c.dial(ctx, streamURL)
	if err != nil {
		return err
	}
	c.logger.Info("connected to trade stream",
		logger.String("url", streamURL),
		logger.Int("symbols_count", len(symbols)))

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, conn, streamURL, tradeChan, c.done)
	return nil
}

func (c *Client) dial(ctx context.Context, streamURL string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(dialCtx, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", streamURL, err)
	}
	return conn, nil
}

func (c *Client) run(ctx context.Context, conn *websocket.Conn, streamURL string, tradeChan chan<- marketdata.Trade, done chan struct{}) {
	defer close(done)

	for {
		err := c.readLoop(ctx, conn, tradeChan)
		_ = conn.Close()
		if ctx.Err() != nil {
			c.logger.Info("trade stream stopped")
			return
		}

		c.logger.Warn("trade stream interrupted, reconnecting", logger.Error(err))
		metrics.FeedReconnectsTotal.WithLabelValues(feedName).Inc()

		err = utils.RetryWithConfig(ctx, func(ctx context.Context) error {
			var dialErr error
			conn, dialErr = c.dial(ctx, streamURL)
			return dialErr
		}, c.retry, c.logger)
		if err != nil {
			c.logger.Error("giving up on trade stream", logger.Error(err))
			return
		}
		c.logger.Info("reconnected to trade stream")
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, tradeChan chan<- marketdata.Trade) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	received := 0
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		trade, err := ParseTradeMessage(msg)
		if err != nil {
			metrics.FeedMessagesDroppedTotal.WithLabelValues(feedName).Inc()
			c.logger.Debug("dropping malformed message", logger.Error(err))
			continue
		}

		select {
		case tradeChan <- trade:
			received++
			metrics.TradesReceivedTotal.WithLabelValues(feedName).Inc()
			if received%1000 == 0 {
				c.logger.Info("trade processing milestone",
					logger.Int("trades_received", received),
					logger.Symbol(trade.Symbol))
			}
		case <-ctx.Done():
			return ctx.Err()
		default:
			c.logger.Warn("tradeChan full, dropping trade", logger.Symbol(trade.Symbol))
		}
	}
}

// Close stops the stream and waits for the reader to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		return errors.New("timed out waiting for trade stream to stop")
	}
	return nil
}
