package pipeline_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/aorc-precip-etl/internal/adapter/archive"
	"github.com/couchcryptid/aorc-precip-etl/internal/adapter/zarr"
	"github.com/couchcryptid/aorc-precip-etl/internal/pipeline"
)

// TestPipeline_EndToEnd_LocalStore runs the whole pipeline against a Zarr
// store on disk and checks the archived artifacts against independently
// computed area means. Rows carry uniform values so the expected mean
// follows from the per-row cosine weights alone.
func TestPipeline_EndToEnd_LocalStore(t *testing.T) {
	const (
		nt = 24
		ny = 2
		nx = 2
	)
	lats := []float64{37.6, 37.7}
	lons := []float64{-89.3, -89.2}

	// Row 0 holds rowValue(ti, 0), row 1 rowValue(ti, 1). Exceptions: cell
	// (5,0,0) is missing, timestep 7 is missing entirely.
	rowValue := func(ti, row int) float64 {
		return 0.25*float64(ti) + 1.5*float64(row)
	}
	data := make([]float64, nt*ny*nx)
	for ti := 0; ti < nt; ti++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				data[(ti*ny+y)*nx+x] = rowValue(ti, y)
			}
		}
	}
	data[(5*ny+0)*nx+0] = math.NaN()
	for i := 7 * ny * nx; i < 8*ny*nx; i++ {
		data[i] = math.NaN()
	}

	store := zarr.NewDirStore(t.TempDir())
	writeDataset(t, store, lats, lons, nt, data)

	outDir := filepath.Join(t.TempDir(), "outputs")
	cfg := testConfig()
	cfg.DatasetURI = "file://aorc-fixture"
	cfg.TimeEnd = time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	cfg.FetchConcurrency = 2
	cfg.QAEnforce = true

	logger := testLogger()
	metrics := newTestMetrics()

	group, err := zarr.Open(context.Background(), store, cfg.FetchConcurrency, logger, metrics)
	require.NoError(t, err)

	paths := archive.Paths{
		Subset: filepath.Join(outDir, "subset.nc"),
		Series: filepath.Join(outDir, "series.csv"),
		Report: filepath.Join(outDir, "report.json"),
	}
	archiver := archive.New(paths, cfg.DatasetURI, logger, metrics)

	p := pipeline.New(group, archiver, nil, cfg, logger, metrics)
	require.NoError(t, p.Run(context.Background()))

	w0 := math.Cos(37.6 * math.Pi / 180)
	w1 := math.Cos(37.7 * math.Pi / 180)

	series, err := archive.ReadSeries(paths.Series)
	require.NoError(t, err)
	require.Equal(t, nt, series.Len())
	assert.Equal(t, "apcp_area_mean", series.Name)
	for ti := 0; ti < nt; ti++ {
		r0, r1 := rowValue(ti, 0), rowValue(ti, 1)
		var want float64
		switch ti {
		case 7:
			assert.True(t, math.IsNaN(series.Values[ti]), "timestep 7 must stay missing")
			continue
		case 5:
			want = (w0*r0 + 2*w1*r1) / (w0 + 2*w1)
		default:
			want = (w0*r0 + w1*r1) / (w0 + w1)
		}
		assert.InDelta(t, want, series.Values[ti], 1e-9, "timestep %d", ti)
	}

	field, err := archive.ReadSubset(paths.Subset)
	require.NoError(t, err)
	assert.Equal(t, []int{nt, ny, nx}, field.Data.Shape)
	assert.Equal(t, lats, field.Grid.Lats)
	assert.Equal(t, lons, field.Grid.Lons)
	assert.True(t, math.IsNaN(field.At(5, 0, 0)))
	assert.Equal(t, rowValue(3, 1), field.At(3, 1, 0))

	report, err := archive.ReadReport(paths.Report)
	require.NoError(t, err)
	assert.True(t, report.Pass())
	assert.Equal(t, nt, report.TimestepCount)
	assert.Equal(t, 1, report.MissingCount, "only the all-missing timestep is a missing mean")
	assert.Equal(t, 23, report.Stats.ValidCount)

	summary, ok := p.Status()
	require.True(t, ok)
	assert.Equal(t, nt, summary.Timesteps)
	assert.Equal(t, ny*nx, summary.GridCells)
}

// writeDataset lays down a minimal AORC-like hierarchy: hourly time axis,
// coordinate axes, and a float32 precipitation array.
func writeDataset(t *testing.T, store zarr.PutStore, lats, lons []float64, nt int, data []float64) {
	t.Helper()
	ctx := context.Background()
	b := zarr.NewBuilder(store)

	timeVals := make([]float64, nt)
	for i := range timeVals {
		timeVals[i] = float64(i)
	}
	require.NoError(t, b.Write(ctx, zarr.ArraySpec{
		Name:       "time",
		Shape:      []int{nt},
		Chunks:     []int{nt},
		Dtype:      "<f8",
		Dimensions: []string{"time"},
		Units:      "hours since 2024-03-01 00:00:00",
		Calendar:   "standard",
		Data:       timeVals,
	}))
	require.NoError(t, b.Write(ctx, zarr.ArraySpec{
		Name:       "latitude",
		Shape:      []int{len(lats)},
		Chunks:     []int{len(lats)},
		Dtype:      "<f8",
		Dimensions: []string{"latitude"},
		Units:      "degrees_north",
		Data:       lats,
	}))
	require.NoError(t, b.Write(ctx, zarr.ArraySpec{
		Name:       "longitude",
		Shape:      []int{len(lons)},
		Chunks:     []int{len(lons)},
		Dtype:      "<f8",
		Dimensions: []string{"longitude"},
		Units:      "degrees_east",
		Data:       lons,
	}))
	require.NoError(t, b.Write(ctx, zarr.ArraySpec{
		Name:       "apcp",
		Shape:      []int{nt, len(lats), len(lons)},
		Chunks:     []int{7, 2, 2},
		Dtype:      "<f4",
		Compressor: &zarr.CompressorMeta{ID: "zlib", Level: 1},
		FillValue:  math.NaN(),
		Dimensions: []string{"time", "latitude", "longitude"},
		Units:      "mm",
		Data:       data,
	}))
	require.NoError(t, b.Finalize(ctx))
}
