package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/aorc-precip-etl/internal/config"
	"github.com/couchcryptid/aorc-precip-etl/internal/domain"
	"github.com/couchcryptid/aorc-precip-etl/internal/observability"
	"github.com/couchcryptid/aorc-precip-etl/internal/pipeline"
)

// --- mocks ---

type mockFetcher struct {
	field       *domain.Field
	err         error
	gotVariable string
	gotSel      domain.Selection
}

func (m *mockFetcher) FetchSubset(_ context.Context, variable string, sel domain.Selection) (*domain.Field, error) {
	m.gotVariable = variable
	m.gotSel = sel
	return m.field, m.err
}

type mockArchiver struct {
	subsets   []*domain.Field
	series    []domain.Series
	reports   []domain.QAReport
	reportErr error
	subsetErr error
}

func (m *mockArchiver) ArchiveSubset(field *domain.Field) (string, error) {
	if m.subsetErr != nil {
		return "", m.subsetErr
	}
	m.subsets = append(m.subsets, field)
	return "outputs/subset.nc", nil
}

func (m *mockArchiver) ArchiveSeries(series domain.Series) (string, error) {
	m.series = append(m.series, series)
	return "outputs/series.csv", nil
}

func (m *mockArchiver) ArchiveReport(report domain.QAReport) (string, error) {
	if m.reportErr != nil {
		return "", m.reportErr
	}
	m.reports = append(m.reports, report)
	return "outputs/report.json", nil
}

type mockPublisher struct {
	published []domain.RunSummary
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, summary domain.RunSummary) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, summary)
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	fetcher := &mockFetcher{field: makeField(t, 4)}
	archiver := &mockArchiver{}
	publisher := &mockPublisher{}
	cfg := testConfig()

	p := pipeline.New(fetcher, archiver, publisher, cfg, testLogger(), newTestMetrics())

	require.Error(t, p.CheckReadiness(context.Background()), "not ready before the run")
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, "apcp", fetcher.gotVariable)
	assert.Equal(t, cfg.TimeStart, fetcher.gotSel.Start)

	require.Len(t, archiver.reports, 1)
	require.Len(t, archiver.subsets, 1)
	require.Len(t, archiver.series, 1)
	assert.Equal(t, 4, archiver.series[0].Len())

	require.Len(t, publisher.published, 1)
	summary := publisher.published[0]
	assert.Equal(t, domain.RunID(cfg.DatasetURI, cfg.Variable, fetcher.gotSel), summary.RunID)
	assert.Equal(t, 4, summary.Timesteps)
	assert.Equal(t, 4, summary.GridCells)
	assert.True(t, summary.QA.Pass())

	assert.NoError(t, p.CheckReadiness(context.Background()))
	got, ok := p.Status()
	require.True(t, ok)
	assert.Equal(t, summary.RunID, got.RunID)
}

func TestPipeline_Run_QAFailureWithoutEnforcement(t *testing.T) {
	field := makeField(t, 4)
	field.Data.Elements[0] = 1e6 // far beyond the plausible range
	fetcher := &mockFetcher{field: field}
	archiver := &mockArchiver{}
	publisher := &mockPublisher{}
	cfg := testConfig()
	cfg.QAEnforce = false

	p := pipeline.New(fetcher, archiver, publisher, cfg, testLogger(), newTestMetrics())

	require.NoError(t, p.Run(context.Background()), "without enforcement a failed QA run still succeeds")

	require.Len(t, archiver.reports, 1)
	assert.False(t, archiver.reports[0].Pass())
	assert.Len(t, archiver.subsets, 1, "artifacts still written")
	assert.Len(t, archiver.series, 1)
	require.Len(t, publisher.published, 1)
	assert.False(t, publisher.published[0].QA.Pass())
}

func TestPipeline_Run_QAFailureEnforced(t *testing.T) {
	field := makeField(t, 4)
	field.Data.Elements[0] = 1e6
	fetcher := &mockFetcher{field: field}
	archiver := &mockArchiver{}
	publisher := &mockPublisher{}
	cfg := testConfig()
	cfg.QAEnforce = true

	p := pipeline.New(fetcher, archiver, publisher, cfg, testLogger(), newTestMetrics())

	err := p.Run(context.Background())
	require.ErrorIs(t, err, pipeline.ErrQAFailed)

	assert.Len(t, archiver.reports, 1, "report is archived whatever the outcome")
	assert.Empty(t, archiver.subsets, "subset withheld under enforcement")
	assert.Empty(t, archiver.series, "series withheld under enforcement")
	assert.Len(t, publisher.published, 1, "summary still published so consumers see the failure")
	assert.NoError(t, p.CheckReadiness(context.Background()), "a completed run counts as ready even when QA fails")
}

func TestPipeline_Run_FetchError(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("bucket unreachable")}
	archiver := &mockArchiver{}
	cfg := testConfig()

	p := pipeline.New(fetcher, archiver, nil, cfg, testLogger(), newTestMetrics())

	err := p.Run(context.Background())
	require.ErrorContains(t, err, "fetch subset")
	assert.Empty(t, archiver.reports)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_EmptyWindowAborts(t *testing.T) {
	fetcher := &mockFetcher{field: makeField(t, 0)}
	archiver := &mockArchiver{}
	cfg := testConfig()

	p := pipeline.New(fetcher, archiver, nil, cfg, testLogger(), newTestMetrics())

	err := p.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrEmptyTime)
	assert.Empty(t, archiver.reports, "structural failures produce no artifacts")
}

func TestPipeline_Run_ArchiveReportError(t *testing.T) {
	fetcher := &mockFetcher{field: makeField(t, 4)}
	archiver := &mockArchiver{reportErr: errors.New("disk full")}
	cfg := testConfig()

	p := pipeline.New(fetcher, archiver, nil, cfg, testLogger(), newTestMetrics())

	err := p.Run(context.Background())
	assert.ErrorContains(t, err, "archive qa report")
}

func TestPipeline_Run_PublishError(t *testing.T) {
	fetcher := &mockFetcher{field: makeField(t, 4)}
	publisher := &mockPublisher{err: errors.New("broker down")}
	cfg := testConfig()

	p := pipeline.New(fetcher, &mockArchiver{}, publisher, cfg, testLogger(), newTestMetrics())

	err := p.Run(context.Background())
	require.ErrorContains(t, err, "publish run summary")
	assert.NoError(t, p.CheckReadiness(context.Background()), "artifacts landed before the publish failure")
}

func TestPipeline_Run_NilPublisher(t *testing.T) {
	fetcher := &mockFetcher{field: makeField(t, 4)}
	archiver := &mockArchiver{}
	cfg := testConfig()

	p := pipeline.New(fetcher, archiver, nil, cfg, testLogger(), newTestMetrics())

	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, archiver.series, 1)
}

func TestPipeline_Run_InvalidSelection(t *testing.T) {
	cfg := testConfig()
	cfg.TimeEnd = cfg.TimeStart.Add(-time.Hour)

	p := pipeline.New(&mockFetcher{}, &mockArchiver{}, nil, cfg, testLogger(), newTestMetrics())

	err := p.Run(context.Background())
	assert.ErrorContains(t, err, "invalid selection")
}

// --- helpers ---

func testConfig() *config.Config {
	return &config.Config{
		DatasetURI:           "s3://noaa-nws-aorc-v1-1-1km",
		Variable:             "apcp",
		TimeStart:            time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		TimeEnd:              time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC),
		LatMin:               37.5,
		LatMax:               37.8,
		LonMin:               -89.4,
		LonMax:               -89.1,
		QAMinPlausible:       0,
		QAMaxPlausible:       100,
		QAMaxMissingFraction: 0.05,
		QAExpectedInterval:   time.Hour,
	}
}

// makeField builds an nt×2×2 field of small plausible values.
func makeField(t *testing.T, nt int) *domain.Field {
	t.Helper()
	grid := domain.Grid{
		Lats: []float64{37.6, 37.7},
		Lons: []float64{-89.3, -89.2},
	}
	times := make([]time.Time, nt)
	for i := range times {
		times[i] = time.Date(2024, 3, 1, i, 0, 0, 0, time.UTC)
	}
	data := sparse.ZerosDense(nt, 2, 2)
	for i := range data.Elements {
		data.Elements[i] = 0.25 * float64(i%8)
	}
	field, err := domain.NewField("apcp", "mm", times, grid, data)
	require.NoError(t, err)
	return field
}
