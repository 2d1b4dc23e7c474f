// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Auth     AuthConfig
	Engine   EngineConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds connection settings. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
	MaxRetries int
	Debug      bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev           bool
	Migrations    bool
	MigrationMode string // "auto" (gorm AutoMigrate) or "sql" (embedded golang-migrate files)
	Seed          bool
}

// AuthConfig holds credential signing settings.
type AuthConfig struct {
	SessionSecret string
	TokenTTL      time.Duration
	ProfileTTL    time.Duration
}

// EngineConfig tunes the due-date engine.
type EngineConfig struct {
	AttachConcurrency    int
	ActivityDefaultLimit int
	ActivityMaxLimit     int
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 60)

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "duedates")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_SQLITE_PATH", "duedates.db")
	v.SetDefault("DB_MAX_RETRIES", 5)
	v.SetDefault("DB_DEBUG", false)

	v.SetDefault("DEV", false)
	v.SetDefault("MIGRATIONS", true)
	v.SetDefault("MIGRATION_MODE", "auto")
	v.SetDefault("DB_SEED", true)

	v.SetDefault("SESSION_SECRET", "devsessionsecret")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("PROFILE_CACHE_TTL", "5m")

	v.SetDefault("ATTACH_CONCURRENCY", 4)
	v.SetDefault("ACTIVITY_DEFAULT_LIMIT", 50)
	v.SetDefault("ACTIVITY_MAX_LIMIT", 200)
}

// Load reads configuration from environment variables, with an optional
// CONFIG_FILE (any format viper understands) underneath them.
// It uses sensible defaults for local development.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("PORT"),
			ReadTimeout:  v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetInt("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:  v.GetInt("SERVER_IDLE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(v.GetString("DB_DRIVER")),
			Host:       v.GetString("DB_HOST"),
			Port:       v.GetInt("DB_PORT"),
			User:       v.GetString("DB_USER"),
			Password:   v.GetString("DB_PASSWORD"),
			DBName:     v.GetString("DB_NAME"),
			SSLMode:    v.GetString("DB_SSLMODE"),
			SQLitePath: v.GetString("DB_SQLITE_PATH"),
			MaxRetries: v.GetInt("DB_MAX_RETRIES"),
			Debug:      v.GetBool("DB_DEBUG"),
		},
		App: AppConfig{
			Dev:           v.GetBool("DEV"),
			Migrations:    v.GetBool("MIGRATIONS"),
			MigrationMode: strings.ToLower(v.GetString("MIGRATION_MODE")),
			Seed:          v.GetBool("DB_SEED"),
		},
		Auth: AuthConfig{
			SessionSecret: v.GetString("SESSION_SECRET"),
			TokenTTL:      v.GetDuration("TOKEN_TTL"),
			ProfileTTL:    v.GetDuration("PROFILE_CACHE_TTL"),
		},
		Engine: EngineConfig{
			AttachConcurrency:    v.GetInt("ATTACH_CONCURRENCY"),
			ActivityDefaultLimit: v.GetInt("ACTIVITY_DEFAULT_LIMIT"),
			ActivityMaxLimit:     v.GetInt("ACTIVITY_MAX_LIMIT"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch c.App.MigrationMode {
	case "auto", "sql":
	default:
		return fmt.Errorf("unsupported MIGRATION_MODE %q", c.App.MigrationMode)
	}
	if c.App.MigrationMode == "sql" && c.Database.Driver != "postgres" {
		return fmt.Errorf("MIGRATION_MODE=sql requires DB_DRIVER=postgres")
	}
	if c.Engine.AttachConcurrency < 1 {
		c.Engine.AttachConcurrency = 1
	}
	if c.Engine.ActivityMaxLimit < 1 {
		c.Engine.ActivityMaxLimit = 200
	}
	if c.Engine.ActivityDefaultLimit < 1 || c.Engine.ActivityDefaultLimit > c.Engine.ActivityMaxLimit {
		c.Engine.ActivityDefaultLimit = min(50, c.Engine.ActivityMaxLimit)
	}
	return nil
}
