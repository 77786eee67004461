package producer

import (
	"context"
	"errors"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/metrics"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/interfaces"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

// KafkaWorker drains the raw trade channel into Kafka. It owns the producer
// and closes it on exit.
type KafkaWorker struct {
	producer interfaces.KafkaProducer
	logger   *logger.Logger
}

func NewKafkaWorker(producer interfaces.KafkaProducer, log *logger.Logger) *KafkaWorker {
	return &KafkaWorker{
		producer: producer,
		logger:   log.Component("kafka_worker"),
	}
}

func (kw *KafkaWorker) Start(ctx context.Context, tradeChan <-chan marketdata.Trade) error {
	kw.logger.Info("starting synchronous kafka worker (using producer's internal retries)",
		logger.Int("channel_buffer", cap(tradeChan)))

	produced, failed := 0, 0
	for {
		select {
		case trade, ok := <-tradeChan:
			if !ok {
				kw.logger.Info("trade channel closed, stopping kafka worker")
				kw.close(produced, failed)
				return nil
			}
			metrics.UpdateChannelMetrics(len(tradeChan), cap(tradeChan), metrics.KafkaChanSize, metrics.KafkaChanCapacity)

			partition, offset, err := kw.producer.Produce(ctx, trade)
			if err != nil {
				failed++
				kw.logger.Error("failed to produce message after producer's internal retries",
					logger.Error(err),
					logger.Symbol(trade.Symbol),
					logger.Int64("trade_id", trade.ID))
				continue
			}
			produced++

			kw.logger.Debug("produced message to kafka",
				logger.Symbol(trade.Symbol),
				logger.Int("partition", int(partition)),
				logger.Int64("offset", offset))

		case <-ctx.Done():
			kw.logger.Info("context cancelled, stopping kafka worker")
			kw.close(produced, failed)
			if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}
			return ctx.Err()
		}
	}
}

func (kw *KafkaWorker) close(produced, failed int) {
	if err := kw.producer.Close(); err != nil {
		kw.logger.Error("error closing kafka producer", logger.Error(err))
	}
	kw.logger.Info("kafka worker finished",
		logger.Int("produced", produced),
		logger.Int("failed", failed))
}
