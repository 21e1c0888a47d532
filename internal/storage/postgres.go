// Package storage opens and configures the single postgres connection pool
// the whole server shares; every internal/repository implementation is
// built on top of the *sql.DB it returns.
package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/daniel-mekuria/zk-server/internal/config"
)

// Open creates and pings a postgres connection pool per cfg.
func Open(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Close closes db, tolerating nil.
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
