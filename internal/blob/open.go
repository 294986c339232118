package blob

import (
	"context"
	"fmt"

	fsstore "yojana/internal/infra/blob/fs"
	memorystore "yojana/internal/infra/blob/memory"
	s3store "yojana/internal/infra/blob/s3"
)

// S3Config re-exports the infra S3 configuration type.
type S3Config = s3store.Config

// Config selects and parameterises a backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open constructs the configured blob store. An empty driver selects the
// filesystem backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFilesystem, "":
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewFilesystem returns a filesystem blob.Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return fsstore.New(root)
}

// NewMemory returns an in-memory blob.Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewS3 constructs an S3-backed blob.Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return s3store.New(ctx, cfg)
}

// NewMockS3ForTests exposes the in-process S3 fake for cross-package tests.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }
