package db

import (
	"fmt"
	"log"
	"time"

	"github.com/diewo77/go-duedates/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormConfig is shared by the server and tests: UTC timestamps and
// translated driver errors (gorm.ErrDuplicatedKey on unique violations).
func GormConfig(debug bool) *gorm.Config {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// Open connects with retries so the server can start before Postgres is ready.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		log.Printf("Connecting to database: sqlite path=%s", cfg.SQLitePath)
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		log.Printf("Connecting to database: host=%s port=%d dbname=%s user=%s",
			cfg.Host, cfg.Port, cfg.DBName, cfg.User)
		dialector = postgres.Open(cfg.DSN())
	}

	attempts := max(cfg.MaxRetries, 1)
	var (
		conn *gorm.DB
		err  error
	)
	for i := 1; i <= attempts; i++ {
		conn, err = gorm.Open(dialector, GormConfig(cfg.Debug))
		if err == nil {
			break
		}
		log.Printf("Database connection attempt %d/%d failed: %v", i, attempts, err)
		if i < attempts {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect database after %d attempts: %w", attempts, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// SQLite allows one writer; a single connection keeps transactions from
		// failing with "database is locked".
		sqlDB.SetMaxOpenConns(1)
	}
	return conn, nil
}
