package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/aorc-precip-etl/internal/domain"
	"github.com/couchcryptid/aorc-precip-etl/internal/observability"
)

// Paths names the destination of each run artifact.
type Paths struct {
	Subset string
	Series string
	Report string
}

// Archiver writes run artifacts to local paths and accounts for their size.
type Archiver struct {
	paths   Paths
	source  string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Archiver. source is recorded as the NetCDF global source
// attribute, typically the dataset URI.
func New(paths Paths, source string, logger *slog.Logger, metrics *observability.Metrics) *Archiver {
	return &Archiver{
		paths:   paths,
		source:  source,
		logger:  logger,
		metrics: metrics,
	}
}

// ArchiveSubset writes the gridded subset and returns its path.
func (a *Archiver) ArchiveSubset(field *domain.Field) (string, error) {
	if err := a.write(a.paths.Subset, "subset", func(path string) error {
		return WriteSubset(path, field, a.source)
	}); err != nil {
		return "", err
	}
	return a.paths.Subset, nil
}

// ArchiveSeries writes the area-mean series and returns its path.
func (a *Archiver) ArchiveSeries(series domain.Series) (string, error) {
	if err := a.write(a.paths.Series, "series", func(path string) error {
		return WriteSeries(path, series)
	}); err != nil {
		return "", err
	}
	return a.paths.Series, nil
}

// ArchiveReport writes the QA report and returns its path.
func (a *Archiver) ArchiveReport(report domain.QAReport) (string, error) {
	if err := a.write(a.paths.Report, "report", func(path string) error {
		return WriteReport(path, report)
	}); err != nil {
		return "", err
	}
	return a.paths.Report, nil
}

func (a *Archiver) write(path, kind string, fn func(string) error) error {
	if path == "" {
		return fmt.Errorf("archive: no %s path configured", kind)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("archive: create output dir: %w", err)
		}
	}
	if err := fn(path); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("archive: stat %s: %w", path, err)
	}
	a.metrics.ArtifactBytes.WithLabelValues(kind).Add(float64(info.Size()))
	a.logger.Info("artifact archived",
		"artifact", kind,
		"path", path,
		"bytes", info.Size(),
	)
	return nil
}
