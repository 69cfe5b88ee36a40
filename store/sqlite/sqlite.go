// Package sqlite opens a SQLite-backed store.Store, for single-node
// deployments and tests.
package sqlite

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sukino/stockledger/store/sqlstore"
)

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

// Open opens the database file at path, creating it if needed.
func Open(path string) (*sqlstore.Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("stockledger/sqlite: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("stockledger/sqlite: pool: %w", err)
	}
	// One writer at a time; an in-memory database also lives on a
	// single connection.
	sqlDB.SetMaxOpenConns(1)

	return sqlstore.New(db, sqlstore.DialectSQLite), nil
}
