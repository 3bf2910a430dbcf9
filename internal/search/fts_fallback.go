//go:build !sqlite_fts5

package search

import (
	"database/sql"
	"fmt"
)

// Without FTS5 the tasks table itself is searched with LIKE.

func initFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ *sql.Tx, _ row) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

func ftsClear(_ *sql.Tx) {}

// Search matches query as a substring of name, body, status or category.
func (db *DB) Search(query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT path, name, substr(body, 1, 200)
		FROM tasks
		WHERE name LIKE ? OR body LIKE ? OR status LIKE ? OR category LIKE ?
		ORDER BY path
		LIMIT ?
	`, like, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	return scanResults(rows)
}
