// Package migrations owns the versioned schema of the durable stores and
// applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// Dialect selects the migration set.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Status describes where a database stands relative to the embedded migrations.
type Status struct {
	Current uint
	Latest  uint
	Dirty   bool
}

// Pending reports whether migrations remain to be applied.
func (s Status) Pending() bool { return s.Current < s.Latest }

// Up applies every pending migration. An up-to-date database is not an error.
func Up(db *sql.DB, dialect Dialect) error {
	m, err := newMigrator(db, dialect)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s up: %w", dialect, err)
	}
	return nil
}

// Down reverts the given number of migrations.
func Down(db *sql.DB, dialect Dialect, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	m, err := newMigrator(db, dialect)
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil {
		return fmt.Errorf("migrate %s down: %w", dialect, err)
	}
	return nil
}

// CurrentStatus reports the applied and latest available versions.
func CurrentStatus(db *sql.DB, dialect Dialect) (Status, error) {
	m, err := newMigrator(db, dialect)
	if err != nil {
		return Status{}, err
	}
	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, fmt.Errorf("read version: %w", err)
	}
	latest, err := latestVersion(dialect)
	if err != nil {
		return Status{}, err
	}
	return Status{Current: current, Latest: latest, Dirty: dirty}, nil
}

func latestVersion(dialect Dialect) (uint, error) {
	src, err := iofs.New(files, string(dialect))
	if err != nil {
		return 0, fmt.Errorf("open %s migrations: %w", dialect, err)
	}
	defer func() { _ = src.Close() }()
	version, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("first %s migration: %w", dialect, err)
	}
	for {
		next, err := src.Next(version)
		if err != nil {
			return version, nil
		}
		version = next
	}
}

func newMigrator(db *sql.DB, dialect Dialect) (*migrate.Migrate, error) {
	var (
		driver database.Driver
		err    error
	)
	switch dialect {
	case SQLite:
		driver, err = sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	case Postgres:
		driver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	default:
		return nil, fmt.Errorf("unknown migration dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("migration driver %s: %w", dialect, err)
	}
	src, err := iofs.New(files, string(dialect))
	if err != nil {
		return nil, fmt.Errorf("open %s migrations: %w", dialect, err)
	}
	return migrate.NewWithInstance("iofs", src, string(dialect), driver)
}
