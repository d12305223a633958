package database

import (
	"fmt"
	"time"

	"github.com/lawnchairsociety/roomweaver/internal/config"
)

// Config holds database connection configuration.
type Config struct {
	// Driver specifies which database to use: "sqlite" or "postgres"
	Driver string

	SQLitePath string

	Postgres PostgresConfig
}

// PostgresConfig holds PostgreSQL-specific configuration.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a Config for a SQLite file at sqlitePath.
func DefaultConfig(sqlitePath string) Config {
	return Config{
		Driver:     "sqlite",
		SQLitePath: sqlitePath,
	}
}

// DefaultPostgresConfig returns PostgresConfig with recommended pool settings.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:            "localhost",
		Port:            5432,
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// ConfigFrom converts the service's database section. Unset postgres
// fields keep the DefaultPostgresConfig values.
func ConfigFrom(c config.DatabaseConfig) Config {
	cfg := DefaultConfig(c.SQLitePath)
	if c.Driver != "" {
		cfg.Driver = c.Driver
	}

	pg := DefaultPostgresConfig()
	if c.PostgresHost != "" {
		pg.Host = c.PostgresHost
	}
	if c.PostgresPort != 0 {
		pg.Port = c.PostgresPort
	}
	if c.PostgresSSLMode != "" {
		pg.SSLMode = c.PostgresSSLMode
	}
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPassword
	pg.Database = c.PostgresDatabase
	cfg.Postgres = pg
	return cfg
}

// DSN returns the lib/pq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}
