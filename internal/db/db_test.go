package db

import (
	"fmt"
	"testing"

	"github.com/diewo77/go-duedates/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	d, err := gorm.Open(sqlite.Open(dsn), GormConfig(false))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := d.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return d
}

func TestMigrateCreatesCoreTables(t *testing.T) {
	d := openTestDB(t)
	if err := Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range coreTables {
		if !d.Migrator().HasTable(table) {
			t.Errorf("missing table %s", table)
		}
	}
	if !d.Migrator().HasIndex(&models.DueDateClient{}, "uk_due_date_clients_firm_due_date_client") {
		t.Error("missing attachment uniqueness index")
	}
}

func TestSeedIdempotent(t *testing.T) {
	d := openTestDB(t)
	if err := Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Seed(d); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var permCount int64
	d.Model(&models.Permission{}).Count(&permCount)
	if err := Seed(d); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	var permCount2, profileCount int64
	d.Model(&models.Permission{}).Count(&permCount2)
	d.Model(&models.Profile{}).Count(&profileCount)
	if permCount != permCount2 {
		t.Fatalf("permissions duplicated: %d -> %d", permCount, permCount2)
	}
	if profileCount != 4 {
		t.Fatalf("expected 4 profiles, got %d", profileCount)
	}

	var staff models.Profile
	if err := d.Preload("Permissions").Where("name = ?", ProfileStaff).First(&staff).Error; err != nil {
		t.Fatalf("load staff: %v", err)
	}
	codes := map[string]bool{}
	for _, p := range staff.Permissions {
		codes[p.Code()] = true
	}
	if !codes["duedate:create"] || codes["duedate:delete"] {
		t.Fatalf("unexpected staff permissions: %v", codes)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	src, err := MigrationSource()
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	defer src.Close()
	version, err := src.First()
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected first version 1, got %d", version)
	}
	up, _, err := src.ReadUp(version)
	if err != nil {
		t.Fatalf("read up: %v", err)
	}
	_ = up.Close()
}
