// Package kafka publishes run summaries so downstream consumers can react to
// finished extractions without polling the artifact directory.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/aorc-precip-etl/internal/config"
	"github.com/couchcryptid/aorc-precip-etl/internal/domain"
)

// Publisher produces run summaries to the summary topic.
// It implements pipeline.SummaryPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured summary topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSummaryTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes one run summary and writes it to the summary topic,
// keyed by run ID so reruns of the same window land on the same partition.
func (p *Publisher) Publish(ctx context.Context, summary domain.RunSummary) error {
	msg, err := serializeSummary(summary)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run summary %s: %w", summary.RunID, err)
	}
	p.logger.Info("run summary published",
		"run_id", summary.RunID,
		"topic", p.writer.Topic,
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeSummary marshals a RunSummary into a Kafka message.
func serializeSummary(summary domain.RunSummary) (kafkago.Message, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(summary.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "variable", Value: []byte(summary.Variable)},
			{Key: "generated_at", Value: []byte(summary.QA.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
