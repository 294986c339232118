package main

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite" // registers the sqlite database/sql driver

	"yojana/internal/config"
	"yojana/internal/infra/persistence/migrations"
)

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(flags, func(db *sql.DB, dialect migrations.Dialect) error {
				if err := migrations.Up(db, dialect); err != nil {
					return err
				}
				return printStatus(cmd, db, dialect)
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert applied migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(flags, func(db *sql.DB, dialect migrations.Dialect) error {
				if err := migrations.Down(db, dialect, steps); err != nil {
					return err
				}
				return printStatus(cmd, db, dialect)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the applied and latest schema versions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(flags, func(db *sql.DB, dialect migrations.Dialect) error {
				return printStatus(cmd, db, dialect)
			})
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

// withDatabase opens the configured SQL database for fn. The memory driver has
// no schema to manage.
func withDatabase(flags *globalFlags, fn func(*sql.DB, migrations.Dialect) error) error {
	cfg, err := flags.load()
	if err != nil {
		return err
	}
	db, dialect, err := openDatabase(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(db, dialect)
}

func openDatabase(cfg config.Storage) (*sql.DB, migrations.Dialect, error) {
	var (
		driver, dsn string
		dialect     migrations.Dialect
	)
	switch cfg.Driver {
	case "sqlite":
		driver, dsn, dialect = "sqlite", cfg.SQLitePath, migrations.SQLite
	case "postgres":
		driver, dsn, dialect = "pgx", cfg.PostgresDSN, migrations.Postgres
	default:
		return nil, "", fmt.Errorf("storage driver %q has no schema to migrate", cfg.Driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	return db, dialect, nil
}

func printStatus(cmd *cobra.Command, db *sql.DB, dialect migrations.Dialect) error {
	st, err := migrations.CurrentStatus(db, dialect)
	if err != nil {
		return err
	}
	state := "up to date"
	switch {
	case st.Dirty:
		state = "dirty"
	case st.Pending():
		state = "pending"
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s schema: version %d of %d (%s)\n", dialect, st.Current, st.Latest, state)
	return err
}
