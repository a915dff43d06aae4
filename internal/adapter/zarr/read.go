package zarr

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/aorc-precip-etl/internal/domain"
)

// FetchSubset reads the selection window of the named (time, lat, lon)
// variable: it decodes the coordinate axes, locates the index ranges the
// window covers (latitude may run either direction), and fetches only the
// chunks intersecting those ranges, concurrently up to the group's limit.
//
// An empty time or spatial window is an error: a run over no data can never
// produce usable output.
func (g *Group) FetchSubset(ctx context.Context, variable string, sel domain.Selection) (*domain.Field, error) {
	arr, err := g.Array(ctx, variable)
	if err != nil {
		return nil, fmt.Errorf("fetch subset: %w", err)
	}
	if len(arr.Meta.Shape) != 3 {
		return nil, fmt.Errorf("fetch subset: %q is %d-dimensional, want (time, lat, lon)",
			variable, len(arr.Meta.Shape))
	}
	timeName, latName, lonName, err := dimNames(arr)
	if err != nil {
		return nil, fmt.Errorf("fetch subset: %w", err)
	}

	times, err := g.readTimeAxis(ctx, timeName)
	if err != nil {
		return nil, fmt.Errorf("fetch subset: %w", err)
	}
	lats, err := g.readCoordAxis(ctx, latName)
	if err != nil {
		return nil, fmt.Errorf("fetch subset: %w", err)
	}
	lons, err := g.readCoordAxis(ctx, lonName)
	if err != nil {
		return nil, fmt.Errorf("fetch subset: %w", err)
	}
	if len(times) != arr.Meta.Shape[0] || len(lats) != arr.Meta.Shape[1] || len(lons) != arr.Meta.Shape[2] {
		return nil, fmt.Errorf("fetch subset: coordinate lengths (%d, %d, %d) disagree with %q shape %v",
			len(times), len(lats), len(lons), variable, arr.Meta.Shape)
	}

	t0, t1, ok := timeRange(times, sel.Start, sel.End)
	if !ok {
		return nil, fmt.Errorf("fetch subset: no timesteps within [%s, %s]: %w",
			sel.Start.Format(time.RFC3339), sel.End.Format(time.RFC3339), domain.ErrEmptyTime)
	}
	y0, y1, ok := axisRange(lats, sel.LatMin, sel.LatMax)
	if !ok {
		return nil, fmt.Errorf("fetch subset: no grid rows within latitude [%.4f, %.4f]", sel.LatMin, sel.LatMax)
	}
	x0, x1, ok := axisRange(lons, sel.LonMin, sel.LonMax)
	if !ok {
		return nil, fmt.Errorf("fetch subset: no grid columns within longitude [%.4f, %.4f]", sel.LonMin, sel.LonMax)
	}

	nt, ny, nx := t1-t0+1, y1-y0+1, x1-x0+1
	g.logger.Info("fetching subset",
		"variable", variable,
		"timesteps", nt, "rows", ny, "cols", nx,
		"first", times[t0].Format(time.RFC3339), "last", times[t1].Format(time.RFC3339),
	)

	out := sparse.ZerosDense(nt, ny, nx)
	ct, cy, cx := arr.Meta.Chunks[0], arr.Meta.Chunks[1], arr.Meta.Chunks[2]

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for tc := t0 / ct; tc <= t1/ct; tc++ {
		for yc := y0 / cy; yc <= y1/cy; yc++ {
			for xc := x0 / cx; xc <= x1/cx; xc++ {
				idx := []int{tc, yc, xc}
				eg.Go(func() error {
					vals, err := g.fetchChunk(egCtx, arr, idx)
					if err != nil {
						return err
					}
					// Overlap of this chunk's box with the window, inclusive.
					lt := max(tc*ct, t0)
					ht := min((tc+1)*ct-1, t1)
					ly := max(yc*cy, y0)
					hy := min((yc+1)*cy-1, y1)
					lx := max(xc*cx, x0)
					hx := min((xc+1)*cx-1, x1)
					for t := lt; t <= ht; t++ {
						for y := ly; y <= hy; y++ {
							src := ((t-tc*ct)*cy+(y-yc*cy))*cx + (lx - xc*cx)
							dst := ((t-t0)*ny+(y-y0))*nx + (lx - x0)
							copy(out.Elements[dst:dst+hx-lx+1], vals[src:src+hx-lx+1])
						}
					}
					return nil
				})
			}
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("fetch subset: %w", err)
	}

	grid := domain.Grid{
		Lats: append([]float64(nil), lats[y0:y1+1]...),
		Lons: append([]float64(nil), lons[x0:x1+1]...),
	}
	window := append([]time.Time(nil), times[t0:t1+1]...)
	return domain.NewField(variable, arr.Attrs.Units, window, grid, out)
}

// readTimeAxis loads a 1-D time coordinate and decodes its CF units.
func (g *Group) readTimeAxis(ctx context.Context, name string) ([]time.Time, error) {
	arr, err := g.Array(ctx, name)
	if err != nil {
		return nil, err
	}
	raw, err := g.read1D(ctx, arr)
	if err != nil {
		return nil, err
	}
	times, err := decodeTimes(raw, arr.Attrs.Units, arr.Attrs.Calendar)
	if err != nil {
		return nil, fmt.Errorf("axis %q: %w", name, err)
	}
	return times, nil
}

// readCoordAxis loads a full 1-D coordinate array.
func (g *Group) readCoordAxis(ctx context.Context, name string) ([]float64, error) {
	arr, err := g.Array(ctx, name)
	if err != nil {
		return nil, err
	}
	return g.read1D(ctx, arr)
}

// read1D fetches every chunk of a 1-D array in order.
func (g *Group) read1D(ctx context.Context, arr *Array) ([]float64, error) {
	if len(arr.Meta.Shape) != 1 {
		return nil, fmt.Errorf("array %q: want 1-D, got shape %v", arr.Name, arr.Meta.Shape)
	}
	n := arr.Meta.Shape[0]
	chunk := arr.Meta.Chunks[0]
	out := make([]float64, n)
	for c := 0; c*chunk < n; c++ {
		vals, err := g.fetchChunk(ctx, arr, []int{c})
		if err != nil {
			return nil, err
		}
		start := c * chunk
		copy(out[start:min(start+chunk, n)], vals)
	}
	return out, nil
}

// fetchChunk retrieves and decodes one chunk. A key absent from the store is
// a legal all-fill chunk, not an error.
func (g *Group) fetchChunk(ctx context.Context, arr *Array, idx []int) ([]float64, error) {
	key := joinKey(arr.Name, chunkKey(idx))
	raw, err := g.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		g.metrics.ChunksMissing.Inc()
		g.logger.Debug("chunk absent, using fill", "key", key)
		return fillChunk(arr), nil
	}
	if err != nil {
		g.metrics.ChunkFetchErrors.Inc()
		return nil, fmt.Errorf("chunk %s: %w", key, err)
	}
	g.metrics.ChunksFetched.Inc()
	g.metrics.BytesFetched.Add(float64(len(raw)))

	vals, err := decodeChunk(raw, arr.Meta, arr.fill)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", key, err)
	}
	return vals, nil
}

// fillChunk materializes an unwritten chunk: NaN for floating dtypes (the
// fill sentinel already decodes to NaN), the raw fill value for integers.
func fillChunk(arr *Array) []float64 {
	n := chunkElems(arr.Meta)
	out := make([]float64, n)
	v := arr.fill
	if isFloatDtype(arr.Meta.Dtype) {
		v = math.NaN()
	}
	if v != 0 {
		for i := range out {
			out[i] = v
		}
	}
	return out
}

// dimNames validates the xarray dimension attribute against the (time, lat,
// lon) layout AORC-style stores use.
func dimNames(arr *Array) (string, string, string, error) {
	dims := arr.Attrs.Dimensions
	if len(dims) != 3 {
		return "", "", "", fmt.Errorf("%q lacks _ARRAY_DIMENSIONS naming its 3 axes", arr.Name)
	}
	if dims[0] != "time" {
		return "", "", "", fmt.Errorf("%q has leading dimension %q, want time-major layout", arr.Name, dims[0])
	}
	if !isLatName(dims[1]) || !isLonName(dims[2]) {
		return "", "", "", fmt.Errorf("%q has spatial dimensions (%q, %q), want (latitude, longitude)",
			arr.Name, dims[1], dims[2])
	}
	return dims[0], dims[1], dims[2], nil
}

func isLatName(s string) bool { return s == "latitude" || s == "lat" }
func isLonName(s string) bool { return s == "longitude" || s == "lon" }

// timeRange returns the inclusive index range of timestamps within
// [start, end]. Monotonic axes make the selection contiguous.
func timeRange(times []time.Time, start, end time.Time) (int, int, bool) {
	i0, i1 := -1, -1
	for i, ts := range times {
		if ts.Before(start) || ts.After(end) {
			continue
		}
		if i0 == -1 {
			i0 = i
		}
		i1 = i
	}
	return i0, i1, i0 != -1
}

// axisRange returns the inclusive index range of coordinates within
// [lo, hi], valid for ascending and descending axes alike.
func axisRange(coords []float64, lo, hi float64) (int, int, bool) {
	i0, i1 := -1, -1
	for i, v := range coords {
		if v < lo || v > hi {
			continue
		}
		if i0 == -1 {
			i0 = i
		}
		i1 = i
	}
	return i0, i1, i0 != -1
}
