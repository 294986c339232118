package core

import (
	"context"
	"fmt"

	"yojana/internal/infra/persistence/memory"
	"yojana/internal/infra/persistence/postgres"
	"yojana/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and parameterises the persistent store.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenPersistentStore builds the configured backend. An empty driver selects
// sqlite. The returned close function releases database handles and is safe to
// call for the memory driver.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *RulesEngine) (PersistentStore, func() error, error) {
	switch cfg.Driver {
	case StorageMemory:
		return memory.NewStore(engine), func() error { return nil }, nil
	case StorageSQLite, "":
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case StoragePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewMemoryStore returns an ephemeral store, mainly for tests and tooling.
func NewMemoryStore(engine *RulesEngine) PersistentStore {
	return memory.NewStore(engine)
}
