package producer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/mocks"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

func rawTrades(n int) []marketdata.Trade {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := make([]marketdata.Trade, n)
	for i := range out {
		sym := "BTCUSDT"
		if i%2 == 1 {
			sym = "ETHUSDT"
		}
		out[i] = marketdata.Trade{
			ID:           int64(i + 1),
			Symbol:       sym,
			Price:        65000 + float64(i),
			Quantity:     0.01,
			Timestamp:    base.Add(time.Duration(i) * time.Millisecond),
			IsBuyerMaker: i%3 == 0,
		}
	}
	return out
}

func TestKafkaWorker_DrainsClosedChannel(t *testing.T) {
	tests := []struct {
		name         string
		trades       int
		produceErr   error
		wantProduced int
	}{
		{name: "all_trades_produced", trades: 4, wantProduced: 4},
		{name: "empty_channel", trades: 0, wantProduced: 0},
		{name: "producer_errors_are_skipped", trades: 3, produceErr: errors.New("broker down"), wantProduced: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			producer := mocks.NewMockKafkaProducer()
			if tc.produceErr != nil {
				producer.SetError(tc.produceErr)
			}
			worker := NewKafkaWorker(producer, logger.NewNoOpLogger())

			in := make(chan marketdata.Trade, tc.trades)
			trades := rawTrades(tc.trades)
			for _, tr := range trades {
				in <- tr
			}
			close(in)

			if err := worker.Start(context.Background(), in); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			produced := producer.GetProducedMessages()
			if len(produced) != tc.wantProduced {
				t.Fatalf("expected %d produced trades, got %d", tc.wantProduced, len(produced))
			}
			for i := range produced {
				if produced[i].ID != trades[i].ID || produced[i].IsBuyerMaker != trades[i].IsBuyerMaker {
					t.Errorf("trade %d out of order or altered: %+v", i, produced[i])
				}
			}
			if !producer.IsClosed() {
				t.Error("expected producer to be closed once the channel is drained")
			}
		})
	}
}

func TestKafkaWorker_StopsOnCancel(t *testing.T) {
	producer := mocks.NewMockKafkaProducer()
	worker := NewKafkaWorker(producer, logger.NewNoOpLogger())

	in := make(chan marketdata.Trade, 1)
	in <- rawTrades(1)[0]

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Start(ctx, in) }()

	deadline := time.Now().Add(time.Second)
	for len(producer.GetProducedMessages()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("trade was never produced")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	if !producer.IsClosed() {
		t.Error("expected producer to be closed on shutdown")
	}
}
