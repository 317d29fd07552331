package shared

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const inMemory = ":memory:"

// NewDatabase opens a connection to a SQLite database at the specified path.
// The path can be ":memory:" for an in-memory database.
//
// Foreign keys are enforced and file databases use WAL journaling with NORMAL sync.
// An in-memory database is pinned to a single connection so every query sees the same schema.
func NewDatabase(path string) (*sql.DB, error) {
	if path != inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == inMemory {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func dsn(path string) string {
	params := []string{"_foreign_keys=on", "_busy_timeout=5000"}
	if path != inMemory {
		params = append(params, "_journal_mode=WAL", "_synchronous=NORMAL")
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&"))
}

// ConfigureDatabase sets connection pool settings for the database.
// Values below one are ignored.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}
