//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/aorc-precip-etl/internal/adapter/kafka"
	"github.com/couchcryptid/aorc-precip-etl/internal/config"
	"github.com/couchcryptid/aorc-precip-etl/internal/domain"
)

const testSummaryTopic = "aorc-run-summaries-test"

// startKafka runs a single-node Kafka in a container and returns its broker
// address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic provisions a topic via the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestPublisher_PublishesRunSummary round-trips a run summary through real
// Kafka: publish with the adapter, consume with a plain reader, and check
// key, headers, and payload.
func TestPublisher_PublishesRunSummary(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSummaryTopic)

	cfg := &config.Config{
		KafkaBrokers:      []string{broker},
		KafkaSummaryTopic: testSummaryTopic,
	}

	sel := domain.Selection{
		Start:  time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2015, 6, 30, 23, 0, 0, 0, time.UTC),
		LatMin: 37.60, LatMax: 37.85,
		LonMin: -89.35, LonMax: -89.05,
	}
	summary := domain.RunSummary{
		RunID:      domain.RunID("s3://noaa-nws-aorc-v1-1-1km", "apcp", sel),
		DatasetURI: "s3://noaa-nws-aorc-v1-1-1km",
		Variable:   "apcp",
		Selection:  sel,
		Timesteps:  720,
		GridCells:  812,
		QA: domain.QAReport{
			GeneratedAt:   time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
			TimestepCount: 720,
			RangeCheck:    domain.CheckResult{Pass: true},
			MissingCheck:  domain.CheckResult{Pass: true},
			TimeCheck:     domain.CheckResult{Pass: true},
		},
	}

	publisher := kafka.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	require.NoError(t, publisher.Publish(ctx, summary))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSummaryTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from summary topic")

	assert.Equal(t, summary.RunID, string(msg.Key))

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "apcp", headers["variable"])
	generatedAt, err := time.Parse(time.RFC3339, headers["generated_at"])
	assert.NoError(t, err, "generated_at should be valid RFC3339")
	assert.True(t, generatedAt.Equal(summary.QA.GeneratedAt))

	var got domain.RunSummary
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, summary.RunID, got.RunID)
	assert.Equal(t, summary.Timesteps, got.Timesteps)
	assert.Equal(t, summary.GridCells, got.GridCells)
	assert.True(t, got.QA.Pass())
	assert.True(t, got.Selection.Start.Equal(sel.Start))
}
