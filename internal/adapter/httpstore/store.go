// Package httpstore adapts a plain HTTP(S) base URL to the zarr.Store
// interface. Public AORC mirrors expose the same hierarchy over unsigned
// HTTPS (e.g. the bucket website endpoint), which needs no SDK and no
// credentials. A 404 maps to zarr.ErrNotFound, which the Zarr reader
// interprets as an absent chunk rather than a failure.
package httpstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/aorc-precip-etl/internal/adapter/zarr"
)

// Store reads Zarr keys as objects under a fixed base URL.
type Store struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a Store for a dataset URI of the form http(s)://host[/prefix].
// timeout bounds each object fetch end to end, body included.
func New(datasetURI string, timeout time.Duration, logger *slog.Logger) (*Store, error) {
	u, err := url.Parse(datasetURI)
	if err != nil {
		return nil, fmt.Errorf("parse dataset URI %q: %w", datasetURI, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("dataset URI %q: expected scheme http or https, got %q", datasetURI, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("dataset URI %q: missing host", datasetURI)
	}

	logger.Info("http store initialized", "url", datasetURI, "timeout", timeout)

	return &Store{
		baseURL:    strings.TrimRight(datasetURI, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Get fetches one object and returns its full contents.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	objURL := s.baseURL + "/" + key

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, objURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", objURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, zarr.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("get %s: status %d: %s", objURL, resp.StatusCode, body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", objURL, err)
	}
	return data, nil
}
