package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"just3sec/core"
)

// DefaultTopic receives every game event.
const DefaultTopic = "just3sec-events"

// Config describes the brokers and topic events are produced to.
type Config struct {
	Brokers []string
	Topic   string
}

// Producer publishes game events to Kafka, keyed by user so one player's
// events stay in order within a partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewProducer connects to the configured brokers.
func NewProducer(cfg Config, logger *slog.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewWithProducer(producer, cfg.Topic, logger), nil
}

// NewWithProducer wraps an existing producer (useful for testing).
func NewWithProducer(p sarama.SyncProducer, topic string, logger *slog.Logger) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{producer: p, topic: topic, logger: logger}
}

// OnEvent has the event bus handler signature. Failures are logged.
func (p *Producer) OnEvent(_ context.Context, e core.Event) {
	if err := p.Send(e); err != nil {
		p.logger.Warn("kafka send failed", "event", e.Type, "user", e.UserID, "error", err)
	}
}

// Send produces one event and waits for the broker ack.
func (p *Producer) Send(e core.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.UserID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(e.Type)},
		},
	}
	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
