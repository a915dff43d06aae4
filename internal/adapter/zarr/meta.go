package zarr

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ArrayMeta is the decoded .zarray document for one array.
type ArrayMeta struct {
	Shape      []int           `json:"shape"`
	Chunks     []int           `json:"chunks"`
	Dtype      string          `json:"dtype"`
	Compressor *CompressorMeta `json:"compressor"`
	FillValue  json.RawMessage `json:"fill_value"`
	Filters    json.RawMessage `json:"filters"`
	Order      string          `json:"order"`
	ZarrFormat int             `json:"zarr_format"`
}

// CompressorMeta identifies the chunk codec in numcodecs form.
type CompressorMeta struct {
	ID    string `json:"id"`
	Level int    `json:"level,omitempty"`
}

// ArrayAttrs is the decoded .zattrs document. Dimensions carries xarray's
// _ARRAY_DIMENSIONS convention naming each axis.
type ArrayAttrs struct {
	Dimensions []string `json:"_ARRAY_DIMENSIONS"`
	Units      string   `json:"units,omitempty"`
	LongName   string   `json:"long_name,omitempty"`
	Calendar   string   `json:"calendar,omitempty"`
}

// consolidatedDoc is the .zmetadata envelope: every metadata document in the
// hierarchy keyed by its store path.
type consolidatedDoc struct {
	Metadata map[string]json.RawMessage `json:"metadata"`
	Format   int                        `json:"zarr_consolidated_format"`
}

func (m ArrayMeta) validate() error {
	if m.ZarrFormat != 2 {
		return fmt.Errorf("zarr: format %d unsupported, want v2", m.ZarrFormat)
	}
	if len(m.Shape) == 0 || len(m.Shape) != len(m.Chunks) {
		return fmt.Errorf("zarr: shape %v and chunks %v disagree", m.Shape, m.Chunks)
	}
	for d, c := range m.Chunks {
		if c <= 0 {
			return fmt.Errorf("zarr: invalid chunk size %d along dim %d", c, d)
		}
		if m.Shape[d] < 0 {
			return fmt.Errorf("zarr: invalid shape %d along dim %d", m.Shape[d], d)
		}
	}
	if m.Order != "" && m.Order != "C" {
		return fmt.Errorf("zarr: order %q unsupported, want C", m.Order)
	}
	if len(m.Filters) > 0 && string(m.Filters) != "null" {
		return fmt.Errorf("zarr: filters are unsupported")
	}
	if _, err := dtypeSize(m.Dtype); err != nil {
		return err
	}
	return nil
}

// fillValue decodes fill_value, which JSON-encodes as a number, null, or one
// of the sentinel strings "NaN"/"Infinity"/"-Infinity". A null fill decodes
// as NaN.
func (m ArrayMeta) fillValue() (float64, error) {
	raw := strings.TrimSpace(string(m.FillValue))
	if raw == "" || raw == "null" {
		return math.NaN(), nil
	}
	var f float64
	if err := json.Unmarshal(m.FillValue, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(m.FillValue, &s); err == nil {
		switch s {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		return 0, fmt.Errorf("zarr: unsupported fill_value %q", s)
	}
	return 0, fmt.Errorf("zarr: unparseable fill_value %s", raw)
}

// encodeFillValue is the inverse of fillValue, for the writer.
func encodeFillValue(f float64) json.RawMessage {
	switch {
	case math.IsNaN(f):
		return json.RawMessage(`"NaN"`)
	case math.IsInf(f, 1):
		return json.RawMessage(`"Infinity"`)
	case math.IsInf(f, -1):
		return json.RawMessage(`"-Infinity"`)
	}
	return json.RawMessage(strconv.FormatFloat(f, 'g', -1, 64))
}

// chunkElems returns the element count of one (possibly edge-padded) chunk.
func chunkElems(m ArrayMeta) int {
	n := 1
	for _, c := range m.Chunks {
		n *= c
	}
	return n
}

// chunkKey renders a chunk index as the store key suffix, e.g. "4.0.2".
func chunkKey(idx []int) string {
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ".")
}
