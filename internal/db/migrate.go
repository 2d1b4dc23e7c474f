package db

import (
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/diewo77/go-duedates/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// coreTables must exist after any migration path.
var coreTables = []string{"users", "profiles", "permissions", "clients", "due_dates", "due_date_clients", "subscriptions", "audits"}

// Migrate runs AutoMigrate for all models.
// Call this at application startup or as part of a migration step.
func Migrate(db *gorm.DB) error {
	for _, m := range models.All() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return checkTables(db)
}

// MigrationSource exposes the embedded SQL migrations.
func MigrationSource() (source.Driver, error) {
	return iofs.New(migrationFiles, "migrations")
}

// MigrateSQL applies the embedded SQL migrations to a Postgres database URL.
func MigrateSQL(databaseURL string) error {
	src, err := MigrationSource()
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("Closing migrator: source=%v db=%v", srcErr, dbErr)
		}
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err == nil {
		log.Printf("Schema at version %d (dirty=%v)", version, dirty)
	}
	return nil
}

func checkTables(db *gorm.DB) error {
	for _, table := range coreTables {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// Seed initializes the database with required seed data.
// Should be called after Migrate.
func Seed(db *gorm.DB) error {
	return SeedProfiles(db)
}
