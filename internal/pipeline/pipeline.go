// Package pipeline orchestrates one extraction run: fetch the gridded
// subset, reduce it to an area-mean series, QA the series, archive the
// artifacts, and publish the run summary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/aorc-precip-etl/internal/config"
	"github.com/couchcryptid/aorc-precip-etl/internal/domain"
	"github.com/couchcryptid/aorc-precip-etl/internal/observability"
)

// ErrQAFailed is returned by Run when a QA check fails and enforcement is
// on. The QA report is still archived and the summary still published; the
// error tells the caller not to trust the subset and series artifacts.
var ErrQAFailed = errors.New("qa checks failed")

// SubsetFetcher retrieves the gridded subset for a space-time selection.
type SubsetFetcher interface {
	FetchSubset(ctx context.Context, variable string, sel domain.Selection) (*domain.Field, error)
}

// Archiver persists run artifacts and returns where each one landed.
type Archiver interface {
	ArchiveSubset(field *domain.Field) (string, error)
	ArchiveSeries(series domain.Series) (string, error)
	ArchiveReport(report domain.QAReport) (string, error)
}

// SummaryPublisher ships the run summary to downstream consumers.
type SummaryPublisher interface {
	Publish(ctx context.Context, summary domain.RunSummary) error
}

// Pipeline runs the fetch-aggregate-qa-archive-publish sequence once.
type Pipeline struct {
	fetcher   SubsetFetcher
	archiver  Archiver
	publisher SummaryPublisher // nil disables publishing
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	summary   atomic.Pointer[domain.RunSummary]
}

// New creates a Pipeline with the given stages and observability. publisher
// may be nil when no brokers are configured.
func New(fetcher SubsetFetcher, archiver Archiver, publisher SummaryPublisher, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:   fetcher,
		archiver:  archiver,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a run has completed, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no extraction run has completed yet")
	}
	return nil
}

// Status returns the most recent run summary, if any run has completed.
func (p *Pipeline) Status() (domain.RunSummary, bool) {
	if s := p.summary.Load(); s != nil {
		return *s, true
	}
	return domain.RunSummary{}, false
}

// Run executes one extraction. The QA report is always archived and the
// summary always published, whatever the QA outcome; the subset and series
// artifacts are skipped when QA fails under enforcement.
func (p *Pipeline) Run(ctx context.Context) error {
	sel := p.selection()
	if err := sel.Validate(); err != nil {
		return fmt.Errorf("invalid selection: %w", err)
	}
	runID := domain.RunID(p.cfg.DatasetURI, p.cfg.Variable, sel)

	p.logger.Info("pipeline started",
		"run_id", runID,
		"dataset", p.cfg.DatasetURI,
		"variable", p.cfg.Variable,
		"window_start", sel.Start,
		"window_end", sel.End,
		"lat_min", sel.LatMin, "lat_max", sel.LatMax,
		"lon_min", sel.LonMin, "lon_max", sel.LonMax,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	field, err := p.fetch(ctx, sel)
	if err != nil {
		return err
	}

	series, err := p.aggregate(field)
	if err != nil {
		return err
	}

	report := p.runQA(series)

	reportPath, err := p.archive(field, series, report)
	if err != nil {
		return err
	}

	summary := domain.RunSummary{
		RunID:      runID,
		DatasetURI: p.cfg.DatasetURI,
		Variable:   p.cfg.Variable,
		Selection:  sel,
		Timesteps:  series.Len(),
		GridCells:  field.Grid.Cells(),
		QA:         report,
	}
	p.summary.Store(&summary)
	p.ready.Store(true)

	if err := p.publish(ctx, summary); err != nil {
		return err
	}

	p.logger.Info("pipeline finished",
		"run_id", runID,
		"qa_passed", report.Pass(),
		"timesteps", series.Len(),
		"report", reportPath,
	)

	if !report.Pass() && p.cfg.QAEnforce {
		return fmt.Errorf("%w: %d range, %d missing, %d time axis violations",
			ErrQAFailed,
			report.RangeCheck.Violations,
			report.MissingCheck.Violations,
			report.TimeCheck.Violations,
		)
	}
	return nil
}

func (p *Pipeline) fetch(ctx context.Context, sel domain.Selection) (*domain.Field, error) {
	start := time.Now()
	field, err := p.fetcher.FetchSubset(ctx, p.cfg.Variable, sel)
	if err != nil {
		return nil, fmt.Errorf("fetch subset: %w", err)
	}
	p.metrics.StageDuration.WithLabelValues("fetch").Observe(time.Since(start).Seconds())
	p.logger.Info("subset fetched",
		"timesteps", len(field.Times),
		"rows", field.Grid.Ny(),
		"cols", field.Grid.Nx(),
	)
	return field, nil
}

func (p *Pipeline) aggregate(field *domain.Field) (domain.Series, error) {
	start := time.Now()
	weights := domain.CosineWeights(field.Grid)
	series, err := domain.AreaMean(field, weights)
	if err != nil {
		return domain.Series{}, fmt.Errorf("area mean: %w", err)
	}
	p.metrics.StageDuration.WithLabelValues("aggregate").Observe(time.Since(start).Seconds())
	p.metrics.TimestepsAggregated.Add(float64(series.Len()))
	return series, nil
}

func (p *Pipeline) runQA(series domain.Series) domain.QAReport {
	start := time.Now()
	report := domain.RunQA(series, domain.QAConfig{
		MinPlausible:       p.cfg.QAMinPlausible,
		MaxPlausible:       p.cfg.QAMaxPlausible,
		MaxMissingFraction: p.cfg.QAMaxMissingFraction,
		ExpectedInterval:   p.cfg.QAExpectedInterval,
	})
	p.metrics.StageDuration.WithLabelValues("qa").Observe(time.Since(start).Seconds())

	p.metrics.MissingTimesteps.Set(float64(report.MissingCount))
	p.metrics.QAViolations.WithLabelValues("range").Set(float64(report.RangeCheck.Violations))
	p.metrics.QAViolations.WithLabelValues("missing").Set(float64(report.MissingCheck.Violations))
	p.metrics.QAViolations.WithLabelValues("time").Set(float64(report.TimeCheck.Violations))
	if report.Pass() {
		p.metrics.QAPassed.Set(1)
	} else {
		p.metrics.QAPassed.Set(0)
	}

	if report.Stats.ValidCount > 0 {
		p.logger.Info("series statistics",
			"valid_timesteps", report.Stats.ValidCount,
			"missing_timesteps", report.MissingCount,
			"mean", report.Stats.Mean,
			"max", report.Stats.Max,
			"max_at", report.Stats.MaxTime,
		)
	}
	if !report.Pass() {
		p.logger.Warn("qa checks failed",
			"range_violations", report.RangeCheck.Violations,
			"missing_fraction", report.MissingFraction,
			"time_violations", report.TimeCheck.Violations,
		)
	}
	return report
}

// archive writes the QA report first so a failed run still leaves evidence,
// then the subset and series unless QA failed under enforcement.
func (p *Pipeline) archive(field *domain.Field, series domain.Series, report domain.QAReport) (string, error) {
	start := time.Now()
	defer func() {
		p.metrics.StageDuration.WithLabelValues("archive").Observe(time.Since(start).Seconds())
	}()

	reportPath, err := p.archiver.ArchiveReport(report)
	if err != nil {
		return "", fmt.Errorf("archive qa report: %w", err)
	}

	if !report.Pass() && p.cfg.QAEnforce {
		p.logger.Warn("skipping subset and series artifacts", "report", reportPath)
		return reportPath, nil
	}

	if _, err := p.archiver.ArchiveSubset(field); err != nil {
		return "", fmt.Errorf("archive subset: %w", err)
	}
	if _, err := p.archiver.ArchiveSeries(series); err != nil {
		return "", fmt.Errorf("archive series: %w", err)
	}
	return reportPath, nil
}

func (p *Pipeline) publish(ctx context.Context, summary domain.RunSummary) error {
	if p.publisher == nil {
		return nil
	}
	start := time.Now()
	if err := p.publisher.Publish(ctx, summary); err != nil {
		p.metrics.PublishErrors.Inc()
		return fmt.Errorf("publish run summary: %w", err)
	}
	p.metrics.SummariesPublished.Inc()
	p.metrics.StageDuration.WithLabelValues("publish").Observe(time.Since(start).Seconds())
	return nil
}

func (p *Pipeline) selection() domain.Selection {
	return domain.Selection{
		Start:  p.cfg.TimeStart,
		End:    p.cfg.TimeEnd,
		LatMin: p.cfg.LatMin,
		LatMax: p.cfg.LatMax,
		LonMin: p.cfg.LonMin,
		LonMax: p.cfg.LonMax,
	}
}
