package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/go-duedates/auth"
	"github.com/diewo77/go-duedates/httpx"
	"github.com/diewo77/go-duedates/internal/config"
	"github.com/diewo77/go-duedates/internal/db"
	"github.com/diewo77/go-duedates/internal/models"
	"github.com/diewo77/go-duedates/internal/policy"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	dbConn, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if *migrateOnlyFlag {
		if err := migrate(dbConn, cfg); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
		return
	}

	if *seedOnlyFlag {
		if err := db.Seed(dbConn); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Println("Seeding completed successfully")
		return
	}

	if cfg.App.Migrations {
		if err := migrate(dbConn, cfg); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Printf("Migrations completed (mode=%s)", cfg.App.MigrationMode)
	}

	// Seed default data (profiles, permissions)
	if cfg.App.Seed {
		if err := db.Seed(dbConn); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	auth.Configure(cfg.Auth.SessionSecret)
	// Credentials of deleted users stop working immediately
	auth.SetUserVerifier(func(ctx context.Context, uid uint) bool {
		var count int64
		dbConn.WithContext(ctx).Model(&models.User{}).Where("id = ?", uid).Count(&count)
		return count > 0
	})

	routerCfg := policy.NewRouterConfig(dbConn, cfg)
	appHandler := NewApp(routerCfg, cfg.App.Dev)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      httpx.Recover(httpx.Logging(appHandler)),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s (dev=%v)", cfg.Server.Port, cfg.App.Dev)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	if sqlDB, err := dbConn.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Println("Server stopped gracefully")
}

// migrate applies the schema with AutoMigrate or the embedded SQL files.
func migrate(conn *gorm.DB, cfg *config.Config) error {
	if cfg.App.MigrationMode == "sql" {
		return db.MigrateSQL(cfg.Database.URL())
	}
	return db.Migrate(conn)
}
