package archive

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/aorc-precip-etl/internal/domain"
)

// WriteSeries stores the area-mean series as a two-column CSV. Every
// timestep keeps its row; missing values become an empty cell rather than a
// sentinel number.
func WriteSeries(path string, series domain.Series) error {
	if len(series.Times) != len(series.Values) {
		return fmt.Errorf("archive: series has %d times but %d values", len(series.Times), len(series.Values))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", series.Name}); err != nil {
		return fmt.Errorf("archive: write csv header: %w", err)
	}
	for i, ts := range series.Times {
		cell := ""
		if v := series.Values[i]; !domain.IsMissing(v) {
			cell = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write([]string{ts.UTC().Format(time.RFC3339), cell}); err != nil {
			return fmt.Errorf("archive: write csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("archive: flush csv: %w", err)
	}
	return f.Close()
}

// ReadSeries loads a CSV produced by WriteSeries. Empty value cells decode
// as NaN.
func ReadSeries(path string) (domain.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Series{}, fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return domain.Series{}, fmt.Errorf("archive: read %s: %w", path, err)
	}
	if len(rows) == 0 || len(rows[0]) != 2 || rows[0][0] != "time" {
		return domain.Series{}, fmt.Errorf("archive: %s is not an area-mean series file", path)
	}

	series := domain.Series{
		Name:   rows[0][1],
		Times:  make([]time.Time, 0, len(rows)-1),
		Values: make([]float64, 0, len(rows)-1),
	}
	for i, row := range rows[1:] {
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return domain.Series{}, fmt.Errorf("archive: row %d: bad timestamp %q: %w", i+1, row[0], err)
		}
		v := math.NaN()
		if row[1] != "" {
			v, err = strconv.ParseFloat(row[1], 64)
			if err != nil {
				return domain.Series{}, fmt.Errorf("archive: row %d: bad value %q: %w", i+1, row[1], err)
			}
		}
		series.Times = append(series.Times, ts.UTC())
		series.Values = append(series.Values, v)
	}
	return series, nil
}
