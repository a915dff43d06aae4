package zarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/aorc-precip-etl/internal/observability"
)

// Group is an opened Zarr hierarchy plus everything the reader needs around
// it: store access, fetch parallelism, metrics, and logging.
type Group struct {
	store        Store
	logger       *slog.Logger
	metrics      *observability.Metrics
	concurrency  int
	consolidated map[string]json.RawMessage // nil without .zmetadata
}

// Array is one named array's metadata; chunk data is fetched on demand.
type Array struct {
	Name  string
	Meta  ArrayMeta
	Attrs ArrayAttrs

	fill float64
}

// Open connects to a store. It prefers the consolidated .zmetadata document
// (one read instead of one per array, which matters against object storage)
// and falls back to per-key metadata when that is absent or unreadable.
func Open(ctx context.Context, store Store, concurrency int, logger *slog.Logger, metrics *observability.Metrics) (*Group, error) {
	g := &Group{store: store, logger: logger, metrics: metrics, concurrency: concurrency}
	if g.concurrency < 1 {
		g.concurrency = 1
	}

	raw, err := store.Get(ctx, ".zmetadata")
	if errors.Is(err, ErrNotFound) {
		logger.Info("no consolidated metadata, using per-key reads")
		return g, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var doc consolidatedDoc
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Metadata == nil {
		logger.Warn("consolidated metadata unreadable, using per-key reads", "error", err)
		return g, nil
	}
	g.consolidated = doc.Metadata
	logger.Debug("opened consolidated store", "entries", len(doc.Metadata))
	return g, nil
}

// Array resolves the named array's .zarray and .zattrs documents. A missing
// array surfaces as ErrNotFound.
func (g *Group) Array(ctx context.Context, name string) (*Array, error) {
	rawMeta, err := g.metaDoc(ctx, name+"/.zarray")
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("array %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("array %q metadata: %w", name, err)
	}

	arr := &Array{Name: name}
	if err := json.Unmarshal(rawMeta, &arr.Meta); err != nil {
		return nil, fmt.Errorf("array %q: parse .zarray: %w", name, err)
	}
	if err := arr.Meta.validate(); err != nil {
		return nil, fmt.Errorf("array %q: %w", name, err)
	}
	if arr.fill, err = arr.Meta.fillValue(); err != nil {
		return nil, fmt.Errorf("array %q: %w", name, err)
	}

	rawAttrs, err := g.metaDoc(ctx, name+"/.zattrs")
	switch {
	case err == nil:
		if err := json.Unmarshal(rawAttrs, &arr.Attrs); err != nil {
			return nil, fmt.Errorf("array %q: parse .zattrs: %w", name, err)
		}
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("array %q attributes: %w", name, err)
	}
	return arr, nil
}

// metaDoc returns a metadata document, from the consolidated index when one
// is loaded and falling through to the store for keys it lacks.
func (g *Group) metaDoc(ctx context.Context, key string) ([]byte, error) {
	if g.consolidated != nil {
		if raw, ok := g.consolidated[key]; ok {
			return raw, nil
		}
	}
	return g.store.Get(ctx, key)
}
