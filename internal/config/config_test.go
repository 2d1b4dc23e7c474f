package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "MIGRATION_MODE", "TOKEN_TTL", "ACTIVITY_DEFAULT_LIMIT", "ACTIVITY_MAX_LIMIT", "CONFIG_FILE"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" || cfg.App.MigrationMode != "auto" {
		t.Errorf("unexpected db/app config %+v %+v", cfg.Database, cfg.App)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("token ttl = %v", cfg.Auth.TokenTTL)
	}
	if cfg.Engine.ActivityDefaultLimit != 50 || cfg.Engine.ActivityMaxLimit != 200 {
		t.Errorf("activity limits = %+v", cfg.Engine)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "SQLITE")
	t.Setenv("ATTACH_CONCURRENCY", "8")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Database.Driver != "sqlite" || cfg.Engine.AttachConcurrency != 8 {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestLoadRejectsSQLMigrationsOnSQLite(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("MIGRATION_MODE", "sql")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(path, []byte("DB_NAME: fromfile\nACTIVITY_MAX_LIMIT: 20\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.DBName != "fromfile" {
		t.Errorf("db name = %q", cfg.Database.DBName)
	}
	if cfg.Engine.ActivityMaxLimit != 20 || cfg.Engine.ActivityDefaultLimit != 20 {
		t.Errorf("limits = %+v", cfg.Engine)
	}
}

func TestDatabaseURL(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, DBName: "db", SSLMode: "disable"}
	if got := d.URL(); got != "postgres://u:p@h:5432/db?sslmode=disable" {
		t.Errorf("URL() = %q", got)
	}
	if got := d.DSN(); got != "host=h port=5432 user=u password=p dbname=db sslmode=disable" {
		t.Errorf("DSN() = %q", got)
	}
}
