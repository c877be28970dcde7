//go:build sqlite_fts5

package library

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS books_fts USING fts5(
			book_id UNINDEXED,
			title,
			description,
			text,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id int64, title, description, text string) error {
	_, _ = tx.Exec(`DELETE FROM books_fts WHERE book_id = ?`, id)
	_, err := tx.Exec(`INSERT INTO books_fts (book_id, title, description, text) VALUES (?, ?, ?, ?)`,
		id, title, description, text)
	if err != nil {
		return fmt.Errorf("library: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id int64) {
	_, _ = tx.Exec(`DELETE FROM books_fts WHERE book_id = ?`, id)
}

// SearchText runs an FTS5 match and returns book ids ordered by rank.
func (db *DB) SearchText(ctx context.Context, query string, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT book_id FROM books_fts
		WHERE books_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("library: search: %w", err)
	}
	return scanIDs(rows)
}
