// Package blob is the entry point higher layers use for blob storage. It
// re-exports the core contract and constructs the infra-backed drivers.
package blob

import (
	"yojana/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

var (
	// ErrNotFound reports an unknown key.
	ErrNotFound = core.ErrNotFound
	// ErrExists reports a create-only write to a taken key.
	ErrExists = core.ErrExists
	// ErrInvalidKey rejects unsafe keys.
	ErrInvalidKey = core.ErrInvalidKey
)
