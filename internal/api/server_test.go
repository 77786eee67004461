package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/collector"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/config"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/dashboard"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/mockdata"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/mocks"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

type fakeIngest struct {
	ingested int64
	resets   int
	views    map[string]dashboard.View
}

func (f *fakeIngest) Ingested() int64 { return f.ingested }

func (f *fakeIngest) ResetIngested() {
	f.ingested = 0
	f.resets++
}

func (f *fakeIngest) LastPoll() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func (f *fakeIngest) Symbols() []string { return []string{"BTCUSDT", "ETHUSDT"} }

func (f *fakeIngest) Snapshot(symbol string) (dashboard.View, bool) {
	v, ok := f.views[symbol]
	return v, ok
}

type testEnv struct {
	handler http.Handler
	store   *mocks.MockTradeStore
	client  *mocks.MockMarketDataClient
	ingest  *fakeIngest
	coll    *collector.Collector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNoOpLogger()
	cfg := &config.Config{
		Feed:           config.FeedMock,
		Symbols:        []string{"BTCUSDT", "ETHUSDT"},
		BatchSize:      10,
		FlushEvery:     time.Second,
		TradesChanBuff: 10,
		BucketWidth:    time.Minute,
		LiveMinutes:    10,
		HistMinutes:    360,
	}

	now := time.Now().UTC()
	store := mocks.NewMockTradeStore().SetTrades([]marketdata.Trade{
		{ID: 1, Symbol: "BTCUSDT", Price: 100, Quantity: 1, Timestamp: now.Add(-5 * time.Minute)},
		{ID: 2, Symbol: "BTCUSDT", Price: 101, Quantity: 2, Timestamp: now.Add(-3 * time.Minute), IsBuyerMaker: true},
		{ID: 3, Symbol: "BTCUSDT", Price: 102, Quantity: 1, Timestamp: now.Add(-10 * time.Second)},
	})
	client := mocks.NewMockMarketDataClient()
	coll := collector.NewCollector(client, store, cfg, log)
	gen := mockdata.NewGenerator(mockdata.Config{Symbols: cfg.Symbols, Seed: 1}, log)
	dash := dashboard.NewService(store, gen, cfg, log)
	ingest := &fakeIngest{
		ingested: 42,
		views:    map[string]dashboard.View{"BTCUSDT": {Symbol: "BTCUSDT", Mode: dashboard.ModeLive, Status: dashboard.StatusOK}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		coll.Stop()
		cancel()
	})

	srv := NewServer(ctx, coll, dash, ingest, []string{"http://localhost:8080"}, log)
	return &testEnv{handler: srv.Handler(), store: store, client: client, ingest: ingest, coll: coll}
}

func (e *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected no-store, got %q", got)
	}
	if body := decode[map[string]string](t, rr); body["status"] != "healthy" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.do(t, http.MethodGet, "/metrics"); rr.Code != http.StatusOK {
		t.Errorf("expected 200 from /metrics, got %d", rr.Code)
	}
}

func TestMissingSymbol(t *testing.T) {
	env := newTestEnv(t)
	for _, target := range []string{"/ohlcv", "/hist_buy_sell", "/live_trades", "/buckets", "/buckets?mode=historical&symbol=%20"} {
		t.Run(target, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, target)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestOHLCV(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/ohlcv?symbol=btcusdt&minutes=abc")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	buckets := decode[[]marketdata.Bucket](t, rr)
	if len(buckets) < 2 || len(buckets) > 3 {
		t.Fatalf("expected 2-3 buckets from store trades, got %d", len(buckets))
	}
	total := 0
	for _, b := range buckets {
		total += b.Trades
	}
	if total != 3 {
		t.Errorf("expected 3 trades across buckets, got %d", total)
	}
}

func TestBuckets(t *testing.T) {
	env := newTestEnv(t)

	t.Run("live", func(t *testing.T) {
		view := decode[dashboard.View](t, env.do(t, http.MethodGet, "/buckets?symbol=BTCUSDT"))
		if view.Mode != dashboard.ModeLive || view.Status != dashboard.StatusOK {
			t.Errorf("unexpected live view: %q/%q", view.Mode, view.Status)
		}
	})

	t.Run("historical_empty_symbol", func(t *testing.T) {
		view := decode[dashboard.View](t, env.do(t, http.MethodGet, "/buckets?symbol=SOLUSDT&mode=historical&minutes=30"))
		if view.Status != dashboard.StatusNoTrades || view.Minutes != 30 || len(view.Buckets) == 0 {
			t.Errorf("expected synthetic historical view, got status=%q minutes=%d buckets=%d",
				view.Status, view.Minutes, len(view.Buckets))
		}
	})

	t.Run("demo", func(t *testing.T) {
		view := decode[dashboard.View](t, env.do(t, http.MethodGet, "/buckets?mode=demo-live"))
		if view.Mode != dashboard.ModeDemoLive || len(view.Buckets) == 0 {
			t.Errorf("unexpected demo view: mode=%q buckets=%d", view.Mode, len(view.Buckets))
		}
	})

	t.Run("bad_mode", func(t *testing.T) {
		if rr := env.do(t, http.MethodGet, "/buckets?mode=weekly&symbol=BTCUSDT"); rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}

func TestLiveTradesAndTopSymbols(t *testing.T) {
	env := newTestEnv(t)

	trades := decode[dashboard.TradesView](t, env.do(t, http.MethodGet, "/live_trades?symbol=BTCUSDT&window_sec=30"))
	if trades.WindowSec != 30 || len(trades.Trades) != 3 || trades.Trades[0].ID != 3 {
		t.Errorf("unexpected live trades: %+v", trades)
	}

	top := decode[dashboard.ActivityView](t, env.do(t, http.MethodGet, "/top_symbols?limit=1"))
	if top.Status != dashboard.StatusNoTrades || len(top.Symbols) != 1 || top.Minutes != 10 {
		t.Errorf("unexpected top symbols: %+v", top)
	}

	flows := decode[dashboard.BuySellView](t, env.do(t, http.MethodGet, "/live_buy_sell?minutes=5&top=2"))
	if flows.Minutes != 5 || len(flows.Symbols) != 2 {
		t.Errorf("unexpected live buy/sell: %+v", flows)
	}
}

func TestCollectorControl(t *testing.T) {
	env := newTestEnv(t)

	start := decode[map[string]json.RawMessage](t, env.do(t, http.MethodPost, "/collector/start"))
	if string(start["started"]) != "true" {
		t.Fatalf("expected started=true, got %s", start["started"])
	}
	if env.ingest.resets != 1 {
		t.Error("expected the ingest counter to be reset on start")
	}

	again := decode[map[string]json.RawMessage](t, env.do(t, http.MethodGet, "/collector/start"))
	if string(again["started"]) != "false" {
		t.Errorf("expected second start to be rejected, got %s", again["started"])
	}

	deadline := time.Now().Add(2 * time.Second)
	for !env.coll.Status().Running && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	status := decode[collector.Status](t, env.do(t, http.MethodGet, "/collector/status"))
	if !status.Running || status.State != collector.StateRunning || status.Store != "mock" {
		t.Errorf("unexpected status: %+v", status)
	}

	stop := decode[map[string]json.RawMessage](t, env.do(t, http.MethodPost, "/collector/stop"))
	if string(stop["stopped"]) != "true" {
		t.Errorf("expected stopped=true, got %s", stop["stopped"])
	}
	if !env.client.IsClosed() {
		t.Error("expected feed client closed after stop")
	}
}

func TestIngest(t *testing.T) {
	env := newTestEnv(t)

	resp := decode[ingestResponse](t, env.do(t, http.MethodGet, "/ingest"))
	if resp.Ingested != 42 || resp.LastPoll == nil {
		t.Errorf("unexpected ingest response: %+v", resp)
	}
	if _, ok := resp.Views["BTCUSDT"]; !ok || len(resp.Views) != 1 {
		t.Errorf("expected one BTCUSDT snapshot, got %v", resp.Views)
	}

	if rr := env.do(t, http.MethodPost, "/ingest/reset"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if env.ingest.ingested != 0 {
		t.Error("expected ingest counter reset")
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantCode   int
	}{
		{"allowed", http.MethodGet, "http://localhost:8080", "http://localhost:8080", http.StatusOK},
		{"disallowed", http.MethodGet, "http://evil.example", "", http.StatusOK},
		{"preflight", http.MethodOptions, "http://localhost:8080", "http://localhost:8080", http.StatusNoContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/health", nil)
			req.Header.Set("Origin", tc.origin)
			if tc.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rr := httptest.NewRecorder()
			env.handler.ServeHTTP(rr, req)

			if rr.Code != tc.wantCode {
				t.Errorf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Errorf("expected allow-origin %q, got %q", tc.wantOrigin, got)
			}
		})
	}
}
