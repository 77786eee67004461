package mocks

import (
	"sync"
	"time"
)

// MockTicker is a manually driven ticker
type MockTicker struct {
	C      chan time.Time
	mutex  sync.Mutex
	ticks  int
	period time.Duration
}

func NewMockTicker(period time.Duration) *MockTicker {
	return &MockTicker{
		C:      make(chan time.Time, 1),
		period: period,
	}
}

// Tick sends a tick unless one is already pending
func (m *MockTicker) Tick() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	select {
	case m.C <- time.Now():
		m.ticks++
	default:
	}
}

func (m *MockTicker) Ticks() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.ticks
}

func (m *MockTicker) Period() time.Duration {
	return m.period
}

// MockTickerFactory hands out mock tickers through a func(time.Duration) *time.Ticker
type MockTickerFactory struct {
	mutex   sync.Mutex
	tickers []*MockTicker
	created chan struct{}
}

func NewMockTickerFactory() *MockTickerFactory {
	return &MockTickerFactory{
		tickers: make([]*MockTicker, 0),
		created: make(chan struct{}, 16),
	}
}

// NewTicker returns a *time.Ticker backed by a mock channel. Stop on it is a no-op.
func (f *MockTickerFactory) NewTicker(d time.Duration) *time.Ticker {
	f.mutex.Lock()
	mockTicker := NewMockTicker(d)
	f.tickers = append(f.tickers, mockTicker)
	f.mutex.Unlock()

	select {
	case f.created <- struct{}{}:
	default:
	}

	return &time.Ticker{
		C: mockTicker.C,
	}
}

// WaitForTicker blocks until a ticker has been created or the timeout passes
func (f *MockTickerFactory) WaitForTicker(timeout time.Duration) *MockTicker {
	if t := f.GetLastTicker(); t != nil {
		return t
	}
	select {
	case <-f.created:
		return f.GetLastTicker()
	case <-time.After(timeout):
		return nil
	}
}

// TickAll triggers a tick on every ticker created so far
func (f *MockTickerFactory) TickAll() {
	f.mutex.Lock()
	tickers := make([]*MockTicker, len(f.tickers))
	copy(tickers, f.tickers)
	f.mutex.Unlock()

	for _, ticker := range tickers {
		ticker.Tick()
	}
}

func (f *MockTickerFactory) GetLastTicker() *MockTicker {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if len(f.tickers) == 0 {
		return nil
	}
	return f.tickers[len(f.tickers)-1]
}
