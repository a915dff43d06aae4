package zarr

import (
	"context"
	"encoding/json"
	"fmt"
)

// ArraySpec describes one array for Builder.Write: metadata plus the full
// row-major value block.
type ArraySpec struct {
	Name       string
	Shape      []int
	Chunks     []int
	Dtype      string
	Compressor *CompressorMeta // nil writes raw chunks
	FillValue  float64         // NaN encodes as the "NaN" sentinel
	Dimensions []string
	Units      string
	LongName   string
	Calendar   string
	Data       []float64

	// OmitChunks lists chunk keys (e.g. "1.0.0") to leave unwritten,
	// standing in for the gaps a reader must treat as all-fill.
	OmitChunks []string
}

// Builder writes Zarr v2 hierarchies for fixtures and synthetic datasets. It
// sticks to the same format subset the reader understands, so everything it
// produces can be read back.
type Builder struct {
	store   PutStore
	entries map[string]json.RawMessage
}

// NewBuilder returns a Builder writing into store.
func NewBuilder(store PutStore) *Builder {
	return &Builder{store: store, entries: map[string]json.RawMessage{}}
}

// Write stores one array: its .zarray and .zattrs documents plus every chunk
// not listed in OmitChunks. Edge chunks are padded with the fill value.
func (b *Builder) Write(ctx context.Context, spec ArraySpec) error {
	if err := spec.check(); err != nil {
		return err
	}

	meta := ArrayMeta{
		Shape:      spec.Shape,
		Chunks:     spec.Chunks,
		Dtype:      spec.Dtype,
		Compressor: spec.Compressor,
		FillValue:  encodeFillValue(spec.FillValue),
		Filters:    json.RawMessage("null"),
		Order:      "C",
		ZarrFormat: 2,
	}
	if err := b.putDoc(ctx, spec.Name+"/.zarray", meta); err != nil {
		return err
	}
	attrs := ArrayAttrs{
		Dimensions: spec.Dimensions,
		Units:      spec.Units,
		LongName:   spec.LongName,
		Calendar:   spec.Calendar,
	}
	if err := b.putDoc(ctx, spec.Name+"/.zattrs", attrs); err != nil {
		return err
	}

	omit := make(map[string]bool, len(spec.OmitChunks))
	for _, key := range spec.OmitChunks {
		omit[key] = true
	}

	counts := make([]int, len(spec.Shape))
	for d := range counts {
		counts[d] = (spec.Shape[d] + spec.Chunks[d] - 1) / spec.Chunks[d]
		if counts[d] == 0 {
			return nil // zero-extent axis, nothing to chunk
		}
	}
	idx := make([]int, len(spec.Shape))
	for {
		if key := chunkKey(idx); !omit[key] {
			packed, err := encodeChunk(gatherChunk(spec, idx), spec.Dtype)
			if err != nil {
				return fmt.Errorf("array %q chunk %s: %w", spec.Name, key, err)
			}
			compressed, err := compress(packed, spec.Compressor)
			if err != nil {
				return fmt.Errorf("array %q chunk %s: %w", spec.Name, key, err)
			}
			if err := b.store.Put(ctx, joinKey(spec.Name, key), compressed); err != nil {
				return fmt.Errorf("array %q chunk %s: %w", spec.Name, key, err)
			}
		}
		if !nextIndex(idx, counts) {
			return nil
		}
	}
}

// Finalize writes the group document and the consolidated metadata index
// covering every array written so far.
func (b *Builder) Finalize(ctx context.Context) error {
	group := json.RawMessage(`{"zarr_format":2}`)
	if err := b.store.Put(ctx, ".zgroup", group); err != nil {
		return fmt.Errorf("finalize store: %w", err)
	}
	b.entries[".zgroup"] = group

	doc := consolidatedDoc{Metadata: b.entries, Format: 1}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("finalize store: %w", err)
	}
	if err := b.store.Put(ctx, ".zmetadata", raw); err != nil {
		return fmt.Errorf("finalize store: %w", err)
	}
	return nil
}

func (b *Builder) putDoc(ctx context.Context, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := b.store.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	b.entries[key] = raw
	return nil
}

func (spec ArraySpec) check() error {
	if spec.Name == "" {
		return fmt.Errorf("zarr: array spec lacks a name")
	}
	if len(spec.Shape) == 0 || len(spec.Shape) != len(spec.Chunks) {
		return fmt.Errorf("array %q: shape %v and chunks %v disagree", spec.Name, spec.Shape, spec.Chunks)
	}
	if len(spec.Dimensions) != len(spec.Shape) {
		return fmt.Errorf("array %q: %d dimension names for %d axes", spec.Name, len(spec.Dimensions), len(spec.Shape))
	}
	n := 1
	for d, s := range spec.Shape {
		if s < 0 || spec.Chunks[d] <= 0 {
			return fmt.Errorf("array %q: invalid extent along dim %d", spec.Name, d)
		}
		n *= s
	}
	if len(spec.Data) != n {
		return fmt.Errorf("array %q: %d values for shape %v (want %d)", spec.Name, len(spec.Data), spec.Shape, n)
	}
	if _, err := dtypeSize(spec.Dtype); err != nil {
		return err
	}
	return nil
}

// gatherChunk collects one chunk's values in row-major order, padding cells
// outside the array's shape with the fill value.
func gatherChunk(spec ArraySpec, idx []int) []float64 {
	ndim := len(spec.Shape)
	strides := make([]int, ndim)
	stride := 1
	for d := ndim - 1; d >= 0; d-- {
		strides[d] = stride
		stride *= spec.Shape[d]
	}

	total := 1
	for _, c := range spec.Chunks {
		total *= c
	}
	out := make([]float64, total)

	local := make([]int, ndim)
	for n := 0; n < total; n++ {
		src, inside := 0, true
		for d := 0; d < ndim; d++ {
			abs := idx[d]*spec.Chunks[d] + local[d]
			if abs >= spec.Shape[d] {
				inside = false
				break
			}
			src += abs * strides[d]
		}
		if inside {
			out[n] = spec.Data[src]
		} else {
			out[n] = spec.FillValue
		}
		for d := ndim - 1; d >= 0; d-- {
			local[d]++
			if local[d] < spec.Chunks[d] {
				break
			}
			local[d] = 0
		}
	}
	return out
}

// nextIndex advances a chunk index odometer; false means the grid is done.
func nextIndex(idx, counts []int) bool {
	for d := len(idx) - 1; d >= 0; d-- {
		idx[d]++
		if idx[d] < counts[d] {
			return true
		}
		idx[d] = 0
	}
	return false
}
