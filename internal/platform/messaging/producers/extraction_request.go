package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/taxdocs-pipeline/internal/config"
)

// ExtractionReqMessageProducer publishes extraction job requests for the
// document processor. Writes are async: beginProcessing is fire-and-forget
// and must not block the upload caller on broker round-trips.
type ExtractionReqMessageProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewExtractionReqMessageProducer creates the producer and ensures the topic exists
func NewExtractionReqMessageProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*ExtractionReqMessageProducer, error) {
	if cfg.ExtractionTopic == "" {
		return nil, fmt.Errorf("kafka extraction topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for extraction producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.ExtractionTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure extraction topic %s exists: %w", cfg.ExtractionTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.ExtractionTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages asynchronously", "topic", cfg.ExtractionTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote messages asynchronously", "topic", cfg.ExtractionTopic, "count", len(messages))
			}
		},
	}

	return &ExtractionReqMessageProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.ExtractionTopic,
	}, nil
}

func (p *ExtractionReqMessageProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for extraction producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish extraction request",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published extraction request",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *ExtractionReqMessageProducer) Close() error {
	p.logger.Info("Closing extraction request Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
