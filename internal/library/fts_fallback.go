//go:build !sqlite_fts5

package library

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; SearchText falls back to LIKE over the books table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ int64, _, _, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ int64) {}

// SearchText returns ids of books whose title, description or full text
// contains query.
func (db *DB) SearchText(ctx context.Context, query string, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 50
	}
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id FROM books
		WHERE title LIKE ? OR description LIKE ? OR text LIKE ?
		ORDER BY id
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("library: search: %w", err)
	}
	return scanIDs(rows)
}
