package redis

import (
	"context"
	"testing"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/config"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

func TestEncode(t *testing.T) {
	if v, err := encode("plain"); err != nil || v != "plain" {
		t.Errorf("expected string passthrough, got %v (%v)", v, err)
	}
	if v, err := encode(1.5); err != nil || v != 1.5 {
		t.Errorf("expected float passthrough, got %v (%v)", v, err)
	}

	buckets := []marketdata.Bucket{{Start: time.Unix(0, 0).UTC(), Open: 1, High: 2, Low: 1, Close: 2, Trades: 3}}
	v, err := encode(buckets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, ok := v.([]byte)
	if !ok {
		t.Fatalf("expected JSON bytes, got %T", v)
	}
	want := `[{"minute":"1970-01-01T00:00:00Z","open":1,"high":2,"low":1,"close":2,"trades":3,"buy_vol":0,"sell_vol":0,"avg_buy":0,"avg_sell":0}]`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}

func TestDial_NoAddress(t *testing.T) {
	cfg := &config.Config{}
	if _, err := NewBucketCache(context.Background(), cfg, logger.NewNoOpLogger()); err == nil {
		t.Error("expected error for empty cache address")
	}
	if _, err := NewBucketPubsub(context.Background(), cfg, logger.NewNoOpLogger()); err == nil {
		t.Error("expected error for empty pubsub address")
	}
}
