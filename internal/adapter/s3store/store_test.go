package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/aorc-precip-etl/internal/adapter/zarr"
)

type fakeGetObjectAPI struct {
	objects map[string][]byte
	err     error
	keys    []string
}

func (f *fakeGetObjectAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.keys = append(f.keys, aws.ToString(in.Key))
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStore_Get(t *testing.T) {
	api := &fakeGetObjectAPI{objects: map[string][]byte{
		"aorc/v1.1/apcp/.zarray": []byte(`{"zarr_format":2}`),
	}}
	store := NewWithAPI(api, "noaa-nws-aorc-v1-1-1km", "aorc/v1.1", testLogger())

	data, err := store.Get(context.Background(), "apcp/.zarray")

	require.NoError(t, err)
	assert.Equal(t, []byte(`{"zarr_format":2}`), data)
	assert.Equal(t, []string{"aorc/v1.1/apcp/.zarray"}, api.keys, "prefix joins the zarr key")
}

func TestStore_Get_EmptyPrefix(t *testing.T) {
	api := &fakeGetObjectAPI{objects: map[string][]byte{
		"apcp/0.0.0": {1, 2, 3},
	}}
	store := NewWithAPI(api, "noaa-nws-aorc-v1-1-1km", "", testLogger())

	data, err := store.Get(context.Background(), "apcp/0.0.0")

	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, []string{"apcp/0.0.0"}, api.keys)
}

func TestStore_Get_MissingKeyMapsToNotFound(t *testing.T) {
	store := NewWithAPI(&fakeGetObjectAPI{}, "bucket", "", testLogger())

	_, err := store.Get(context.Background(), "apcp/9.9.9")

	assert.ErrorIs(t, err, zarr.ErrNotFound)
}

func TestStore_Get_WrapsTransportErrors(t *testing.T) {
	api := &fakeGetObjectAPI{err: errors.New("connection reset")}
	store := NewWithAPI(api, "bucket", "aorc", testLogger())

	_, err := store.Get(context.Background(), "apcp/0.0.0")

	require.Error(t, err)
	assert.NotErrorIs(t, err, zarr.ErrNotFound)
	assert.Contains(t, err.Error(), "s3://bucket/aorc/apcp/0.0.0")
}

func TestParseDatasetURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantPrefix string
		wantErr    string
	}{
		{
			name:       "bucket only",
			uri:        "s3://noaa-nws-aorc-v1-1-1km",
			wantBucket: "noaa-nws-aorc-v1-1-1km",
		},
		{
			name:       "bucket with prefix",
			uri:        "s3://noaa-nws-aorc-v1-1-1km/aorc/v1.1",
			wantBucket: "noaa-nws-aorc-v1-1-1km",
			wantPrefix: "aorc/v1.1",
		},
		{
			name:       "trailing slash trimmed",
			uri:        "s3://bucket/data/",
			wantBucket: "bucket",
			wantPrefix: "data",
		},
		{
			name:    "wrong scheme",
			uri:     "https://example.com/data",
			wantErr: "expected scheme s3",
		},
		{
			name:    "missing bucket",
			uri:     "s3:///data",
			wantErr: "missing bucket name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, prefix, err := ParseDatasetURI(tt.uri)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantPrefix, prefix)
		})
	}
}
