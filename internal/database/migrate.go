// migrate.go applies schema migrations at startup using golang-migrate.
//
// The schema is small (analyses, users, user_videos) but the analysis table's
// UNIQUE(platform, external_id) constraint is load-bearing for the upsert
// merge, so we refuse to serve traffic on an out-of-date schema: main calls
// RunMigrations before the router comes up and aborts on failure.
package database

import (
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // register the file:// source
)

// RunMigrations brings the schema up to the latest version. Already-applied
// versions are skipped via the schema_migrations bookkeeping table, so calling
// this on every boot is idempotent.
func (db *DB) RunMigrations(migrationsPath string) error {
	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("open migrations at %s: %w", migrationsPath, err)
	}

	switch err := m.Up(); {
	case err == nil:
		version, dirty, _ := m.Version()
		if dirty {
			// Up() succeeded, so a dirty flag here means a concurrent migrator.
			log.Printf("⚠️  Database: schema version %d is marked dirty", version)
		}
		log.Printf("📦 Database: schema migrated to version %d", version)
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("📦 Database: schema already up to date")
	default:
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
