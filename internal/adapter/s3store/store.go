// Package s3store adapts an S3 bucket prefix to the zarr.Store interface.
//
// The AORC archive is a public bucket, so the client is built with anonymous
// credentials and never consults the environment's shared AWS config for
// signing. Missing object keys map to zarr.ErrNotFound, which the Zarr reader
// interprets as an absent chunk rather than a failure.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/couchcryptid/aorc-precip-etl/internal/adapter/zarr"
)

// GetObjectAPI is the slice of the S3 client the store depends on.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store reads Zarr keys as S3 objects under a fixed bucket and prefix.
type Store struct {
	api    GetObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// New builds a Store for a dataset URI of the form s3://bucket[/prefix],
// using anonymous credentials.
func New(ctx context.Context, datasetURI, region string, logger *slog.Logger) (*Store, error) {
	bucket, prefix, err := ParseDatasetURI(datasetURI)
	if err != nil {
		return nil, err
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	logger.Info("s3 store initialized",
		"bucket", bucket,
		"prefix", prefix,
		"region", region,
	)

	return NewWithAPI(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

// NewWithAPI builds a Store on an existing S3 API, used by tests to
// substitute a fake.
func NewWithAPI(api GetObjectAPI, bucket, prefix string, logger *slog.Logger) *Store {
	return &Store{
		api:    api,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

// Get fetches one object and returns its full contents.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	objKey := path.Join(s.prefix, key)

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, zarr.ErrNotFound
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, objKey, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, objKey, err)
	}
	return data, nil
}

// ParseDatasetURI splits s3://bucket[/prefix] into its bucket and key prefix.
func ParseDatasetURI(datasetURI string) (bucket, prefix string, err error) {
	u, err := url.Parse(datasetURI)
	if err != nil {
		return "", "", fmt.Errorf("parse dataset URI %q: %w", datasetURI, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("dataset URI %q: expected scheme s3, got %q", datasetURI, u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("dataset URI %q: missing bucket name", datasetURI)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
