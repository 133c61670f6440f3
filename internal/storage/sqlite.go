package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// openWritable opens (creating if needed) a read-write database file.
func openWritable(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// openReadOnly opens an existing database file that must never be mutated.
func openReadOnly(dbPath string) (*sql.DB, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("stat database %s: %w", dbPath, err)
	}

	dsn := (&url.URL{
		Scheme:   "file",
		Opaque:   dbPath,
		RawQuery: "mode=ro&_pragma=query_only(1)",
	}).String()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

type pinger struct{ db *sql.DB }

// Ping checks the underlying connection.
func (p pinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the pool.
func (p pinger) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
