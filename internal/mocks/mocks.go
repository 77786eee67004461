package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

// MockMarketDataClient implements the MarketDataClient interface for testing
type MockMarketDataClient struct {
	mu               sync.Mutex
	subscribed       bool
	symbols          []string
	tradeChan        chan<- marketdata.Trade
	closed           bool
	tradesToGenerate []marketdata.Trade
	err              error
}

func NewMockMarketDataClient() *MockMarketDataClient {
	return &MockMarketDataClient{}
}

func (m *MockMarketDataClient) SetError(err error) *MockMarketDataClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *MockMarketDataClient) SetTrades(trades []marketdata.Trade) *MockMarketDataClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tradesToGenerate = trades
	return m
}

func (m *MockMarketDataClient) SubscribeToSymbols(ctx context.Context, tradeChan chan<- marketdata.Trade, symbols []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.subscribed = true
	m.symbols = symbols
	m.tradeChan = tradeChan

	// Generate trades in background if any were set
	if len(m.tradesToGenerate) > 0 {
		go func() {
			for _, trade := range m.tradesToGenerate {
				select {
				case <-ctx.Done():
					return
				case tradeChan <- trade:
				}
			}
		}()
	}

	return nil
}

func (m *MockMarketDataClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockMarketDataClient) IsSubscribed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribed
}

func (m *MockMarketDataClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockMarketDataClient) GetSymbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.symbols
}

// MockCacheClient implements the CacheClient interface for testing
type MockCacheClient struct {
	mu      sync.Mutex
	storage map[string]any
	ttls    map[string]time.Duration
	calls   int
	closed  bool
	err     error
}

func NewMockCacheClient() *MockCacheClient {
	return &MockCacheClient{
		storage: make(map[string]any),
		ttls:    make(map[string]time.Duration),
	}
}

func (m *MockCacheClient) SetError(err error) *MockCacheClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *MockCacheClient) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return m.err
	}

	m.storage[key] = value
	m.ttls[key] = expiration
	return nil
}

func (m *MockCacheClient) GetTTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

func (m *MockCacheClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockCacheClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockCacheClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockCacheClient) GetValue(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, exists := m.storage[key]
	return val, exists
}

// MockPubsubClient implements the PubsubClient interface for testing
type MockPubsubClient struct {
	mu              sync.Mutex
	publishedTopics map[string][]any
	closed          bool
	err             error
}

func NewMockPubsubClient() *MockPubsubClient {
	return &MockPubsubClient{
		publishedTopics: make(map[string][]any),
	}
}

func (m *MockPubsubClient) SetError(err error) *MockPubsubClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *MockPubsubClient) Publish(ctx context.Context, topic string, message any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.publishedTopics[topic] = append(m.publishedTopics[topic], message)
	return nil
}

func (m *MockPubsubClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockPubsubClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockPubsubClient) GetPublished(topic string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publishedTopics[topic]
}

// MockKafkaProducer implements the KafkaProducer interface for testing
type MockKafkaProducer struct {
	mu       sync.Mutex
	messages []marketdata.Trade
	closed   bool
	err      error
}

func NewMockKafkaProducer() *MockKafkaProducer {
	return &MockKafkaProducer{
		messages: make([]marketdata.Trade, 0),
	}
}

func (m *MockKafkaProducer) SetError(err error) *MockKafkaProducer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *MockKafkaProducer) Produce(ctx context.Context, trade marketdata.Trade) (partition int32, offset int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return 0, 0, m.err
	}

	m.messages = append(m.messages, trade)
	return 0, int64(len(m.messages) - 1), nil
}

func (m *MockKafkaProducer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockKafkaProducer) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockKafkaProducer) GetProducedMessages() []marketdata.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages
}

// MockTradeStore implements the TradeStore interface for testing
type MockTradeStore struct {
	mu         sync.Mutex
	trades     []marketdata.Trade
	activity   []marketdata.SymbolActivity
	inserts    int
	insertErr  error
	readErr    error
	lastWindow time.Duration
}

func NewMockTradeStore() *MockTradeStore {
	return &MockTradeStore{}
}

func (m *MockTradeStore) Name() string { return "mock" }

func (m *MockTradeStore) SetTrades(trades []marketdata.Trade) *MockTradeStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append([]marketdata.Trade(nil), trades...)
	return m
}

func (m *MockTradeStore) SetActivity(activity []marketdata.SymbolActivity) *MockTradeStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = activity
	return m
}

func (m *MockTradeStore) SetInsertError(err error) *MockTradeStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertErr = err
	return m
}

func (m *MockTradeStore) SetReadError(err error) *MockTradeStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
	return m
}

func (m *MockTradeStore) InsertTrades(ctx context.Context, trades []marketdata.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inserts++
	if m.insertErr != nil {
		return m.insertErr
	}
	m.trades = append(m.trades, trades...)
	return nil
}

func (m *MockTradeStore) TradesSince(ctx context.Context, symbol string, since time.Time) ([]marketdata.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]marketdata.Trade, 0)
	for _, t := range m.trades {
		if t.Symbol == symbol && !t.Timestamp.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

// RecentTrades returns matching trades newest first, ignoring the window
func (m *MockTradeStore) RecentTrades(ctx context.Context, symbol string, window time.Duration, limit int) ([]marketdata.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastWindow = window
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]marketdata.Trade, 0)
	for i := len(m.trades) - 1; i >= 0; i-- {
		if m.trades[i].Symbol == symbol {
			out = append(out, m.trades[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockTradeStore) TopSymbols(ctx context.Context, window time.Duration, limit int) ([]marketdata.SymbolActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastWindow = window
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := m.activity
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockTradeStore) Inserted() []marketdata.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]marketdata.Trade(nil), m.trades...)
}

func (m *MockTradeStore) InsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts
}

func (m *MockTradeStore) LastWindow() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastWindow
}
