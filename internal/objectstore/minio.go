// Package objectstore reads portal manifests published to S3-compatible storage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// StatusError carries the HTTP status the object store answered with.
type StatusError struct {
	Status int
	Code   string
	Err    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("object store returned %d %s: %v", e.Status, e.Code, e.Err)
}

func (e *StatusError) Unwrap() error   { return e.Err }
func (e *StatusError) HTTPStatus() int { return e.Status }

type Store struct {
	client *minio.Client
}

func New(cfg Config) (*Store, error) {
	if !cfg.Enabled() {
		return nil, errors.New("object store endpoint is empty")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return &Store{client: client}, nil
}

// Open returns the object body. The object is stat'ed first so missing keys
// surface here instead of on the first read.
func (s *Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, wrap(err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, wrap(err)
	}
	return obj, nil
}

// Ping verifies that the configured credentials can list buckets.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.ListBuckets(ctx); err != nil {
		return wrap(err)
	}
	return nil
}

func wrap(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode != 0 {
		return &StatusError{Status: resp.StatusCode, Code: resp.Code, Err: err}
	}
	return err
}
