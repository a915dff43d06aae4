package zarr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// dtypeSize returns the byte width of a supported dtype. Only the
// little-endian numeric dtypes NOAA stores use are handled.
func dtypeSize(dtype string) (int, error) {
	switch dtype {
	case "<f4", "<i4", "<u4":
		return 4, nil
	case "<f8", "<i8":
		return 8, nil
	}
	return 0, fmt.Errorf("zarr: unsupported dtype %q (want little-endian f4/f8/i4/i8/u4)", dtype)
}

func isFloatDtype(dtype string) bool { return dtype == "<f4" || dtype == "<f8" }

// decompress reverses the chunk codec. A nil compressor means raw bytes.
func decompress(raw []byte, comp *CompressorMeta) ([]byte, error) {
	if comp == nil {
		return raw, nil
	}
	switch comp.ID {
	case "zlib":
		r, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case "zstd":
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("zarr: unsupported compressor %q (blosc is not handled; re-chunk with zlib or zstd)", comp.ID)
}

// compress applies the chunk codec for the writer.
func compress(data []byte, comp *CompressorMeta) ([]byte, error) {
	if comp == nil {
		return data, nil
	}
	switch comp.ID {
	case "zlib":
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, codecLevel(comp))
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		return buf.Bytes(), nil
	case "gzip":
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, codecLevel(comp))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return buf.Bytes(), nil
	case "zstd":
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	}
	return nil, fmt.Errorf("zarr: unsupported compressor %q", comp.ID)
}

func codecLevel(comp *CompressorMeta) int {
	if comp.Level == 0 {
		return zlib.DefaultCompression
	}
	return comp.Level
}

// decodeChunk decompresses and decodes one full chunk into float64s. For
// floating dtypes, values equal to the fill sentinel decode as NaN; integer
// dtypes (coordinate axes) pass through untouched.
func decodeChunk(raw []byte, meta ArrayMeta, fill float64) ([]float64, error) {
	data, err := decompress(raw, meta.Compressor)
	if err != nil {
		return nil, err
	}
	size, err := dtypeSize(meta.Dtype)
	if err != nil {
		return nil, err
	}
	n := chunkElems(meta)
	if len(data) != n*size {
		return nil, fmt.Errorf("zarr: chunk holds %d bytes, want %d (%d × %s)", len(data), n*size, n, meta.Dtype)
	}

	out := make([]float64, n)
	switch meta.Dtype {
	case "<f4":
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	case "<f8":
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	case "<i4":
		for i := range out {
			out[i] = float64(int32(binary.LittleEndian.Uint32(data[i*4:])))
		}
	case "<u4":
		for i := range out {
			out[i] = float64(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case "<i8":
		for i := range out {
			out[i] = float64(int64(binary.LittleEndian.Uint64(data[i*8:])))
		}
	}

	if isFloatDtype(meta.Dtype) && !math.IsNaN(fill) {
		for i, v := range out {
			if v == fill {
				out[i] = math.NaN()
			}
		}
	}
	return out, nil
}

// encodeChunk packs float64 values into the dtype's little-endian bytes.
func encodeChunk(values []float64, dtype string) ([]byte, error) {
	size, err := dtypeSize(dtype)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(values)*size)
	switch dtype {
	case "<f4":
		for i, v := range values {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(v)))
		}
	case "<f8":
		for i, v := range values {
			binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
		}
	case "<i4":
		for i, v := range values {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(v)))
		}
	case "<u4":
		for i, v := range values {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
		}
	case "<i8":
		for i, v := range values {
			binary.LittleEndian.PutUint64(out[i*8:], uint64(int64(v)))
		}
	}
	return out, nil
}
