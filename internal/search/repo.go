package search

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/taskboard/internal/models"
)

const defaultLimit = 20

// Result is one search hit.
type Result struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Snippet string `json:"snippet"`
}

type row struct {
	Path     string
	Name     string
	Status   string
	Category string
	Body     string
	Checksum string
}

func rowOf(t models.Task) row {
	return row{
		Path:     t.FilePath,
		Name:     t.Name,
		Status:   t.Status,
		Category: t.Category,
		Body:     t.Content,
		Checksum: t.Checksum,
	}
}

// Upsert inserts or replaces a task. A task whose checksum matches the stored
// one is left untouched.
func (db *DB) Upsert(t models.Task) error {
	if t.Checksum != "" {
		stored, err := db.Checksum(t.FilePath)
		if err != nil {
			return err
		}
		if stored == t.Checksum {
			return nil
		}
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertRow(tx, rowOf(t)); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertRow(tx *sql.Tx, r row) error {
	_, err := tx.Exec(`
		INSERT INTO tasks (path, name, status, category, body, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name       = excluded.name,
			status     = excluded.status,
			category   = excluded.category,
			body       = excluded.body,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, r.Path, r.Name, r.Status, r.Category, r.Body, r.Checksum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("search: upsert %s: %w", r.Path, err)
	}
	return ftsUpsert(tx, r)
}

// Delete removes a task from the mirror. Unknown paths are not an error.
func (db *DB) Delete(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM tasks WHERE path = ?`, path); err != nil {
		return fmt.Errorf("search: delete %s: %w", path, err)
	}
	return tx.Commit()
}

// Reload replaces the whole mirror with tasks in one transaction.
func (db *DB) Reload(tasks []models.Task) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsClear(tx)
	if _, err := tx.Exec(`DELETE FROM tasks`); err != nil {
		return fmt.Errorf("search: clear: %w", err)
	}
	for _, t := range tasks {
		if err := upsertRow(tx, rowOf(t)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Checksum returns the stored checksum for path, or "" if it is not mirrored.
func (db *DB) Checksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM tasks WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("search: checksum: %w", err)
	}
	return cs, nil
}

// Len returns the number of mirrored tasks.
func (db *DB) Len() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM tasks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("search: count: %w", err)
	}
	return n, nil
}

func scanResults(rows *sql.Rows) ([]Result, error) {
	defer rows.Close()

	out := []Result{}
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Path, &r.Name, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
