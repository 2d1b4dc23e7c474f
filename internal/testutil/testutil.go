// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/go-duedates/internal/config"
	"github.com/diewo77/go-duedates/internal/db"
	"github.com/diewo77/go-duedates/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewTestDB opens a private in-memory SQLite database, migrated and seeded.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(false))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Seed(conn); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return conn
}

// CreateMember inserts a user of firmID holding the named profile.
func CreateMember(t *testing.T, conn *gorm.DB, firmID, email, profile string) models.User {
	t.Helper()
	u := models.User{FirmID: firmID, Email: email, Name: strings.Split(email, "@")[0]}
	if profile != "" {
		var p models.Profile
		if err := conn.Where("name = ?", profile).First(&p).Error; err != nil {
			t.Fatalf("profile %s: %v", profile, err)
		}
		u.ProfileID = &p.ID
	}
	if err := conn.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateClient inserts a client directly, bypassing quota checks.
func CreateClient(t *testing.T, conn *gorm.DB, firmID, name string) models.Client {
	t.Helper()
	c := models.Client{FirmID: firmID, Name: name}
	if err := conn.Create(&c).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	return c
}

// Config returns a development configuration on SQLite, independent of the
// environment.
func Config() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: "0", ReadTimeout: 5, WriteTimeout: 5, IdleTimeout: 5},
		Database: config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:", MaxRetries: 1},
		App:      config.AppConfig{Dev: true, Migrations: true, MigrationMode: "auto", Seed: true},
		Auth: config.AuthConfig{
			SessionSecret: "test-secret",
			TokenTTL:      time.Hour,
			ProfileTTL:    time.Minute,
		},
		Engine: config.EngineConfig{AttachConcurrency: 2, ActivityDefaultLimit: 50, ActivityMaxLimit: 200},
	}
}
