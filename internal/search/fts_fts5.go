//go:build sqlite_fts5

package search

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(
			path UNINDEXED,
			name,
			body,
			labels,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, r row) error {
	_, _ = tx.Exec(`DELETE FROM tasks_fts WHERE path = ?`, r.Path)
	_, err := tx.Exec(`INSERT INTO tasks_fts (path, name, body, labels) VALUES (?, ?, ?, ?)`,
		r.Path, r.Name, r.Body, r.Status+" "+r.Category)
	if err != nil {
		return fmt.Errorf("search: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM tasks_fts WHERE path = ?`, path)
}

func ftsClear(tx *sql.Tx) {
	_, _ = tx.Exec(`DELETE FROM tasks_fts`)
}

// Search runs an FTS5 query and returns matches ordered by rank.
func (db *DB) Search(query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := db.conn.Query(`
		SELECT path,
		       name,
		       snippet(tasks_fts, 2, '<b>', '</b>', '...', 32)
		FROM tasks_fts
		WHERE tasks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	return scanResults(rows)
}
