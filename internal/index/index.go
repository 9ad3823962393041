// Package index provides a SQLite-backed tag index used by the admin UI for
// autocomplete suggestions. It is a derived cache: Rebuild regenerates it
// from the collection, so losing the database file is harmless.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ostberg/folio/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tags (
	name  TEXT PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_tags_count ON tags(count DESC);
`

// TagCount is one tag with its usage count across the collection.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DB wraps a sql.DB with tag-index operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Rebuild replaces the whole index with the tag counts derived from the
// given projects.
func (db *DB) Rebuild(projects []models.Project) error {
	counts := make(map[string]int)
	for _, p := range projects {
		for _, tag := range p.Tags {
			if tag != "" {
				counts[tag]++
			}
		}
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM tags`); err != nil {
		return fmt.Errorf("index: clear tags: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO tags (name, count) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare insert: %w", err)
	}
	defer stmt.Close()
	for name, count := range counts {
		if _, err := stmt.Exec(name, count); err != nil {
			return fmt.Errorf("index: insert tag: %w", err)
		}
	}

	return tx.Commit()
}

// Suggest returns up to limit tags starting with prefix, most used first.
// An empty prefix returns the most used tags overall.
func (db *DB) Suggest(prefix string, limit int) ([]TagCount, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	rows, err := db.conn.Query(`
		SELECT name, count FROM tags
		WHERE name LIKE ? || '%'
		ORDER BY count DESC, name ASC
		LIMIT ?
	`, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("index: suggest: %w", err)
	}
	defer rows.Close()

	out := []TagCount{}
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
