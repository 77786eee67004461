package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/config"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/metrics"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/pkg/marketdata"
)

type SaramaSyncProducer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewSaramaConfig returns the producer settings used for raw trades.
// Sync producers require Return.Successes.
func NewSaramaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Retry.Max = 3
	config.Producer.Retry.Backoff = 100 * time.Millisecond
	return config
}

func NewKafkaSyncProducer(cfg *config.Config) (*SaramaSyncProducer, error) {
	producer, err := sarama.NewSyncProducer(cfg.KafkaBrokers, NewSaramaConfig())
	if err != nil {
		return nil, err
	}
	return NewSaramaSyncProducer(producer, cfg.KafkaTopicTrades), nil
}

func NewSaramaSyncProducer(producer sarama.SyncProducer, topic string) *SaramaSyncProducer {
	return &SaramaSyncProducer{
		producer: producer,
		topic:    topic,
	}
}

// Produce publishes the trade keyed by symbol so a symbol's trades stay ordered.
func (p *SaramaSyncProducer) Produce(ctx context.Context, t marketdata.Trade) (int32, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	bytes, err := json.Marshal(t)
	if err != nil {
		return 0, 0, fmt.Errorf("could not marshal trade: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(t.Symbol),
		Value:     sarama.ByteEncoder(bytes),
		Timestamp: t.Timestamp,
	}

	metrics.KafkaPublishTotal.Inc()
	timer := metrics.NewTimer(metrics.KafkaOperationDuration)
	partition, offset, err := p.producer.SendMessage(message)
	timer.ObserveDuration()
	if err != nil {
		metrics.KafkaPublishErrorsTotal.Inc()
		return 0, 0, err
	}
	return partition, offset, nil
}

func (p *SaramaSyncProducer) Close() error {
	return p.producer.Close()
}
