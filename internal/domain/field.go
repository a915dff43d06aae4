package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"
)

// Field is a gridded variable sliced to a space-time window: a time axis, the
// spatial grid, and a dense (time × lat × lon) value block. Fields are
// immutable once constructed.
type Field struct {
	Variable string
	Units    string
	Times    []time.Time
	Grid     Grid
	Data     *sparse.DenseArray
}

// NewField wraps a dense block in a Field after checking that the block's
// shape is (len(times), grid.Ny(), grid.Nx()).
func NewField(variable, units string, times []time.Time, grid Grid, data *sparse.DenseArray) (*Field, error) {
	if data == nil {
		return nil, fmt.Errorf("field %s: nil data", variable)
	}
	if len(data.Shape) != 3 {
		return nil, fmt.Errorf("field %s: data is %d-dimensional, want 3", variable, len(data.Shape))
	}
	if data.Shape[0] != len(times) || data.Shape[1] != grid.Ny() || data.Shape[2] != grid.Nx() {
		return nil, fmt.Errorf("field %s: data shape %v does not match (%d, %d, %d)",
			variable, data.Shape, len(times), grid.Ny(), grid.Nx())
	}
	return &Field{Variable: variable, Units: units, Times: times, Grid: grid, Data: data}, nil
}

// At returns the value at time index t, latitude index j, longitude index i.
func (f *Field) At(t, j, i int) float64 { return f.Data.Get(t, j, i) }

// Weights assigns every grid cell its contribution to the spatial mean.
// Weights are non-negative and need not sum to one; AreaMean normalizes.
type Weights struct {
	Grid Grid
	Data *sparse.DenseArray
}

// NewWeights wraps a dense (lat × lon) block after checking that its shape
// matches the grid and that every weight is finite and non-negative.
func NewWeights(grid Grid, data *sparse.DenseArray) (Weights, error) {
	if data == nil {
		return Weights{}, fmt.Errorf("weights: nil data")
	}
	if len(data.Shape) != 2 || data.Shape[0] != grid.Ny() || data.Shape[1] != grid.Nx() {
		return Weights{}, fmt.Errorf("weights: data shape %v does not match grid (%d, %d): %w",
			data.Shape, grid.Ny(), grid.Nx(), ErrShapeMismatch)
	}
	for i, w := range data.Elements {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return Weights{}, fmt.Errorf("weights: element %d is %v, want finite and non-negative", i, w)
		}
	}
	return Weights{Grid: grid, Data: data}, nil
}

// CosineWeights builds cos(latitude) area weights for a regular grid: every
// cell in a row weighs cos of the row's latitude in radians, the first-order
// correction for cells shrinking toward the poles.
func CosineWeights(grid Grid) Weights {
	data := sparse.ZerosDense(grid.Ny(), grid.Nx())
	for j, lat := range grid.Lats {
		w := math.Cos(lat * math.Pi / 180)
		if w < 0 {
			w = 0
		}
		for i := 0; i < grid.Nx(); i++ {
			data.Set(w, j, i)
		}
	}
	return Weights{Grid: grid, Data: data}
}

// Series is a 1-D time series, one value per timestep. Values use NaN as the
// missing marker; see IsMissing.
type Series struct {
	Name   string
	Times  []time.Time
	Values []float64
}

// Len returns the number of timesteps.
func (s Series) Len() int { return len(s.Values) }

// MissingCount returns the number of missing values in the series.
func (s Series) MissingCount() int {
	n := 0
	for _, v := range s.Values {
		if IsMissing(v) {
			n++
		}
	}
	return n
}

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }
