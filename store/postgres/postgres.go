// Package postgres opens a PostgreSQL-backed store.Store.
package postgres

import (
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sukino/stockledger/store/sqlstore"
)

// Config tunes the connection pool.
type Config struct {
	MaxOpenConns int
	MaxIdleConns int
	// Tracing records an OpenTelemetry span per query through the global
	// tracer provider.
	Tracing bool
}

// DefaultConfig returns the pool settings used when none are given.
func DefaultConfig() Config {
	return Config{MaxOpenConns: 25, MaxIdleConns: 5}
}

// Open connects to dsn. Call Migrate (or Ledger.Start) before use.
func Open(dsn string, cfg Config) (*sqlstore.Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("stockledger/postgres: open: %w", err)
	}

	if cfg.Tracing {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			return nil, fmt.Errorf("stockledger/postgres: tracing: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("stockledger/postgres: pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	return sqlstore.New(db, sqlstore.DialectPostgres), nil
}
