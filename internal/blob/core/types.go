// Package core defines the blob storage contract shared by the backends under
// internal/infra/blob and the services that keep timesheet signatures.
package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem represents the local filesystem implementation.
	DriverFilesystem Driver = "fs"
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3"
	// DriverMemory represents an in-memory implementation typically used in tests.
	DriverMemory Driver = "memory"
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
	// Overwrite replaces an existing object instead of failing with ErrExists.
	Overwrite bool
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store provides a thin S3-like abstraction used by higher layers.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	// Delete reports false without error when the key is absent.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns blobs under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

var (
	// ErrNotFound is returned by Get and Head for unknown keys.
	ErrNotFound = errors.New("blobstore: not found")
	// ErrExists is returned by Put when the key is taken and Overwrite is unset.
	ErrExists = errors.New("blobstore: already exists")
	// ErrInvalidKey rejects empty, absolute or traversing keys.
	ErrInvalidKey = errors.New("blobstore: invalid key")
)

// ValidateKey applies the key rules every backend enforces.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return ErrInvalidKey
	case strings.HasPrefix(key, "/"):
		return ErrInvalidKey
	case strings.Contains(key, ".."):
		return ErrInvalidKey
	}
	return nil
}

// CloneMetadata copies user metadata so callers cannot mutate stored state.
func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
