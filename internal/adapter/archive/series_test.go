package archive

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/aorc-precip-etl/internal/domain"
)

func testSeries() domain.Series {
	times := make([]time.Time, 4)
	for i := range times {
		times[i] = time.Date(2024, 3, 1, i, 0, 0, 0, time.UTC)
	}
	return domain.Series{
		Name:   "apcp_area_mean",
		Times:  times,
		Values: []float64{0.125, 2.5, math.NaN(), 0.0917431192660551},
	}
}

func TestSeries_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")
	want := testSeries()

	require.NoError(t, WriteSeries(path, want))
	got, err := ReadSeries(path)
	require.NoError(t, err)

	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Times, got.Times)
	require.Len(t, got.Values, len(want.Values))
	for i, v := range want.Values {
		if math.IsNaN(v) {
			assert.True(t, math.IsNaN(got.Values[i]), "row %d should stay missing", i)
			continue
		}
		assert.Equal(t, v, got.Values[i], "row %d must round-trip exactly", i)
	}
}

func TestWriteSeries_MissingValuesAreEmptyCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")

	require.NoError(t, WriteSeries(path, testSeries()))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, string(raw), "time,apcp_area_mean\n")
	assert.Contains(t, string(raw), "2024-03-01T02:00:00Z,\n", "missing value keeps its row")
	assert.NotContains(t, string(raw), "NaN")
}

func TestWriteSeries_RejectsLengthMismatch(t *testing.T) {
	series := testSeries()
	series.Values = series.Values[:2]

	err := WriteSeries(filepath.Join(t.TempDir(), "series.csv"), series)
	assert.ErrorContains(t, err, "4 times but 2 values")
}

func TestReadSeries_RejectsMalformedFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "wrong header",
			content: "timestamp,value\n2024-03-01T00:00:00Z,1\n",
			wantErr: "not an area-mean series",
		},
		{
			name:    "bad timestamp",
			content: "time,apcp_area_mean\n03/01/2024,1\n",
			wantErr: "bad timestamp",
		},
		{
			name:    "bad value",
			content: "time,apcp_area_mean\n2024-03-01T00:00:00Z,wet\n",
			wantErr: "bad value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "series.csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := ReadSeries(path)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
