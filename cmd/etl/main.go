package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/aorc-precip-etl/internal/adapter/archive"
	httpadapter "github.com/couchcryptid/aorc-precip-etl/internal/adapter/http"
	"github.com/couchcryptid/aorc-precip-etl/internal/adapter/httpstore"
	kafkaadapter "github.com/couchcryptid/aorc-precip-etl/internal/adapter/kafka"
	"github.com/couchcryptid/aorc-precip-etl/internal/adapter/s3store"
	"github.com/couchcryptid/aorc-precip-etl/internal/adapter/zarr"
	"github.com/couchcryptid/aorc-precip-etl/internal/config"
	"github.com/couchcryptid/aorc-precip-etl/internal/observability"
	"github.com/couchcryptid/aorc-precip-etl/internal/pipeline"
)

// Exit codes: 1 is a structural failure (config, store, I/O), 2 means the
// run finished but QA enforcement rejected the series.
const (
	exitOK     = 0
	exitError  = 1
	exitQAFail = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitError
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to open dataset store", "error", err)
		return exitError
	}

	group, err := zarr.Open(ctx, store, cfg.FetchConcurrency, logger, metrics)
	if err != nil {
		logger.Error("failed to open dataset", "error", err, "dataset", cfg.DatasetURI)
		return exitError
	}

	// Summary publishing is feature-flagged via KAFKA_BROKERS / KAFKA_PUBLISH.
	var publisher pipeline.SummaryPublisher
	if cfg.PublishEnabled {
		pub := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		publisher = pub
		logger.Info("run summary publishing enabled", "topic", cfg.KafkaSummaryTopic, "brokers", len(cfg.KafkaBrokers))
	} else {
		logger.Info("run summary publishing disabled")
	}

	archiver := archive.New(archive.Paths{
		Subset: cfg.SubsetPath(),
		Series: cfg.SeriesPath(),
		Report: cfg.ReportPath(),
	}, cfg.DatasetURI, logger, metrics)

	p := pipeline.New(group, archiver, publisher, cfg, logger, metrics)

	// Serve health and metrics while the run is in flight.
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runErr := p.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	switch {
	case runErr == nil:
		return exitOK
	case errors.Is(runErr, pipeline.ErrQAFailed):
		logger.Error("artifacts withheld by qa enforcement", "error", runErr)
		return exitQAFail
	default:
		logger.Error("pipeline error", "error", runErr)
		return exitError
	}
}

// openStore picks the chunk store implementation from the dataset URI scheme.
// Remote stores get an in-memory cache in front when CHUNK_CACHE_BYTES is set;
// local directory stores read straight from disk.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (zarr.Store, error) {
	var store zarr.Store
	switch {
	case strings.HasPrefix(cfg.DatasetURI, "s3://"):
		s, err := s3store.New(ctx, cfg.DatasetURI, cfg.AWSRegion, logger)
		if err != nil {
			return nil, err
		}
		store = s
	case strings.HasPrefix(cfg.DatasetURI, "https://"), strings.HasPrefix(cfg.DatasetURI, "http://"):
		s, err := httpstore.New(cfg.DatasetURI, cfg.FetchTimeout, logger)
		if err != nil {
			return nil, err
		}
		store = s
	case strings.HasPrefix(cfg.DatasetURI, "file://"):
		return zarr.NewDirStore(strings.TrimPrefix(cfg.DatasetURI, "file://")), nil
	default:
		return nil, fmt.Errorf("unsupported dataset URI %q: want s3://, https:// or file://", cfg.DatasetURI)
	}
	if cfg.ChunkCacheBytes > 0 {
		store = zarr.NewLRUStore(store, cfg.ChunkCacheBytes, metrics)
	}
	return store, nil
}
