package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

// Dialect selects the migration set and goose dialect.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// goose keeps its dialect and filesystem in package globals.
var gooseMu sync.Mutex

func (d Dialect) dir() string {
	if d == DialectSQLite {
		return "migrations/sqlite"
	}
	return "migrations/postgres"
}

// Migrate applies every pending migration for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("stockledger/sql: migrate: %w", err)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(string(s.dialect)); err != nil {
		return fmt.Errorf("stockledger/sql: set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, s.dialect.dir()); err != nil {
		return fmt.Errorf("stockledger/sql: goose up: %w", err)
	}
	return nil
}
