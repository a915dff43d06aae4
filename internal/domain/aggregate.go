package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrShapeMismatch reports weights whose spatial shape differs from the
	// field's grid. Nothing can be aggregated from mismatched inputs.
	ErrShapeMismatch = errors.New("weights shape does not match field grid")

	// ErrEmptyTime reports a field with a zero-length time axis.
	ErrEmptyTime = errors.New("field has no timesteps")
)

// AreaMean collapses a gridded field to a time series of weighted spatial
// means. Each timestep reduces independently to
//
//	sum(weight[j,i] * value[t,j,i]) / sum(weight[j,i])
//
// over the cells holding a valid value at that timestep. Missing cells (NaN)
// and negative accumulations are excluded from both sums, so the remaining
// cells are renormalized rather than diluted toward zero. A timestep with no
// valid cells (or zero total valid weight) yields the missing marker; the
// timestep stays in the output, so the series length always equals
// len(field.Times) and the time ordering is preserved exactly.
//
// Structural problems abort with no partial result: ErrShapeMismatch when the
// weights do not cover the field's grid, ErrEmptyTime when there is nothing
// to aggregate.
func AreaMean(field *Field, weights Weights) (Series, error) {
	if field == nil || field.Data == nil {
		return Series{}, fmt.Errorf("area mean: nil field")
	}
	nt, ny, nx := field.Data.Shape[0], field.Data.Shape[1], field.Data.Shape[2]
	if weights.Data == nil || len(weights.Data.Shape) != 2 ||
		weights.Data.Shape[0] != ny || weights.Data.Shape[1] != nx {
		return Series{}, fmt.Errorf("area mean: weights %v against field grid (%d, %d): %w",
			shapeOf(weights), ny, nx, ErrShapeMismatch)
	}
	if nt == 0 {
		return Series{}, fmt.Errorf("area mean: %w", ErrEmptyTime)
	}

	cells := ny * nx
	values := make([]float64, nt)
	for t := 0; t < nt; t++ {
		base := t * cells
		var num, den float64
		for c := 0; c < cells; c++ {
			v := field.Data.Elements[base+c]
			if math.IsNaN(v) || v < 0 {
				continue
			}
			w := weights.Data.Elements[c]
			num += w * v
			den += w
		}
		if den == 0 {
			values[t] = math.NaN()
			continue
		}
		values[t] = num / den
	}

	times := make([]time.Time, nt)
	copy(times, field.Times)
	return Series{Name: field.Variable + "_area_mean", Times: times, Values: values}, nil
}

func shapeOf(w Weights) []int {
	if w.Data == nil {
		return nil
	}
	return w.Data.Shape
}
