package archive

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/aorc-precip-etl/internal/observability"
)

func testArchiver(t *testing.T) (*Archiver, Paths) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "outputs") // does not exist yet
	paths := Paths{
		Subset: filepath.Join(dir, "subset.nc"),
		Series: filepath.Join(dir, "series.csv"),
		Report: filepath.Join(dir, "report.json"),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(paths, "s3://noaa-nws-aorc-v1-1-1km", logger, observability.NewMetricsForTesting()), paths
}

func TestArchiver_WritesAllArtifacts(t *testing.T) {
	archiver, paths := testArchiver(t)

	subsetPath, err := archiver.ArchiveSubset(testField(t))
	require.NoError(t, err, "output dir should be created on demand")
	assert.Equal(t, paths.Subset, subsetPath)

	seriesPath, err := archiver.ArchiveSeries(testSeries())
	require.NoError(t, err)
	assert.Equal(t, paths.Series, seriesPath)

	reportPath, err := archiver.ArchiveReport(testReport())
	require.NoError(t, err)
	assert.Equal(t, paths.Report, reportPath)

	field, err := ReadSubset(subsetPath)
	require.NoError(t, err)
	assert.Equal(t, "apcp", field.Variable)

	series, err := ReadSeries(seriesPath)
	require.NoError(t, err)
	assert.Equal(t, 4, series.Len())

	report, err := ReadReport(reportPath)
	require.NoError(t, err)
	assert.Equal(t, 24, report.TimestepCount)
}

func TestArchiver_RejectsMissingPaths(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	archiver := New(Paths{}, "", logger, observability.NewMetricsForTesting())

	_, err := archiver.ArchiveSeries(testSeries())
	assert.ErrorContains(t, err, "no series path configured")
}
