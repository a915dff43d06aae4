// Package archive persists run artifacts: the gridded subset as NetCDF, the
// area-mean series as CSV, and the QA report as JSON. Formats follow the
// conventions of the upstream AORC archive so the files open cleanly in
// xarray and pandas.
package archive

import (
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/couchcryptid/aorc-precip-etl/internal/adapter/zarr"
	"github.com/couchcryptid/aorc-precip-etl/internal/domain"
)

const (
	dimTime = "time"
	dimLat  = "latitude"
	dimLon  = "longitude"
)

// WriteSubset stores the gridded subset as a classic NetCDF file with CF
// coordinate variables. Data values are stored as float32, matching the
// source archive; missing cells stay NaN and are declared via _FillValue.
func WriteSubset(path string, field *domain.Field, source string) error {
	if field == nil || field.Data == nil {
		return fmt.Errorf("archive: subset field has no data")
	}
	if field.Variable == "" {
		return fmt.Errorf("archive: subset field has no variable name")
	}
	nt, ny, nx := len(field.Times), field.Grid.Ny(), field.Grid.Nx()
	if nt == 0 || ny == 0 || nx == 0 {
		return fmt.Errorf("archive: subset is empty (%d×%d×%d)", nt, ny, nx)
	}

	timeUnits := "hours since " + field.Times[0].UTC().Format("2006-01-02 15:04:05")
	timeVals, err := zarr.EncodeCFTimes(field.Times, timeUnits)
	if err != nil {
		return fmt.Errorf("archive: encode time axis: %w", err)
	}

	h := cdf.NewHeader([]string{dimTime, dimLat, dimLon}, []int{nt, ny, nx})

	h.AddVariable(dimTime, []string{dimTime}, []float64{0})
	h.AddAttribute(dimTime, "units", timeUnits)
	h.AddAttribute(dimTime, "calendar", "standard")

	h.AddVariable(dimLat, []string{dimLat}, []float64{0})
	h.AddAttribute(dimLat, "units", "degrees_north")

	h.AddVariable(dimLon, []string{dimLon}, []float64{0})
	h.AddAttribute(dimLon, "units", "degrees_east")

	units := field.Units
	if units == "" {
		units = "mm"
	}
	h.AddVariable(field.Variable, []string{dimTime, dimLat, dimLon}, []float32{0})
	h.AddAttribute(field.Variable, "units", units)
	h.AddAttribute(field.Variable, "_FillValue", []float32{float32(math.NaN())})

	if source != "" {
		h.AddAttribute("", "source", source)
	}
	h.Define()

	ff, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", path, err)
	}
	defer ff.Close()

	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("archive: write netcdf header: %w", err)
	}

	values := make([]float32, len(field.Data.Elements))
	for i, v := range field.Data.Elements {
		values[i] = float32(v)
	}

	for _, v := range []struct {
		name string
		data interface{}
	}{
		{dimTime, timeVals},
		{dimLat, append([]float64(nil), field.Grid.Lats...)},
		{dimLon, append([]float64(nil), field.Grid.Lons...)},
		{field.Variable, values},
	} {
		w := f.Writer(v.name, nil, nil)
		if _, err := w.Write(v.data); err != nil {
			return fmt.Errorf("archive: write %s: %w", v.name, err)
		}
	}

	return ff.Close()
}

// ReadSubset loads a NetCDF subset produced by WriteSubset back into a
// Field. The data variable is found by its rank; coordinate variables are
// one-dimensional.
func ReadSubset(path string) (*domain.Field, error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer ff.Close()

	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("archive: read netcdf header: %w", err)
	}

	variable := ""
	for _, v := range f.Header.Variables() {
		if len(f.Header.Lengths(v)) == 3 {
			variable = v
			break
		}
	}
	if variable == "" {
		return nil, fmt.Errorf("archive: %s has no three-dimensional variable", path)
	}

	timeVals, err := readVarFloat64(f, dimTime)
	if err != nil {
		return nil, err
	}
	timeUnits, _ := f.Header.GetAttribute(dimTime, "units").(string)
	times, err := zarr.DecodeCFTimes(timeVals, timeUnits)
	if err != nil {
		return nil, fmt.Errorf("archive: decode time axis: %w", err)
	}

	lats, err := readVarFloat64(f, dimLat)
	if err != nil {
		return nil, err
	}
	lons, err := readVarFloat64(f, dimLon)
	if err != nil {
		return nil, err
	}

	values, err := readVarFloat64(f, variable)
	if err != nil {
		return nil, err
	}
	if fill, ok := f.Header.GetAttribute(variable, "_FillValue").([]float32); ok && len(fill) == 1 && !math.IsNaN(float64(fill[0])) {
		sentinel := float64(fill[0])
		for i, v := range values {
			if v == sentinel {
				values[i] = math.NaN()
			}
		}
	}

	data := sparse.ZerosDense(len(times), len(lats), len(lons))
	if len(values) != len(data.Elements) {
		return nil, fmt.Errorf("archive: %s variable %s holds %d values, want %d", path, variable, len(values), len(data.Elements))
	}
	copy(data.Elements, values)

	units, _ := f.Header.GetAttribute(variable, "units").(string)
	return domain.NewField(variable, units, times, domain.Grid{Lats: lats, Lons: lons}, data)
}

// readVarFloat64 reads a whole variable and widens it to float64.
func readVarFloat64(f *cdf.File, name string) ([]float64, error) {
	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", name, err)
	}
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("archive: variable %s has unsupported type %T", name, buf)
	}
}
