// Package persistence provides SQLite-based storage for session lifecycle
// rows and per-turn session snapshots.
package persistence

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"pilot/pkg/logx"
)

// Open opens (creating if needed) the database at dbPath and brings its
// schema to CurrentSchemaVersion. ":memory:" opens a private in-memory
// database.
func Open(dbPath string) (*sql.DB, error) {
	dsn := ":memory:"
	if dbPath != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; an in-memory database also
	// disappears when its only connection closes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if !strings.HasPrefix(dsn, ":memory:") {
		logx.NewLogger("persistence").Info("📦 Database initialized: %s", dbPath)
	}
	return db, nil
}
