//go:build sqlite_fts5

package library

import (
	"context"
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM books_fts`).Scan(&count); err != nil {
		t.Fatalf("books_fts table missing: %v", err)
	}
}

func TestFTS5_DeleteRemovesFromIndex(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	id := mustUpsert(t, db, BookInput{Source: "gone.md", Title: "Gone", Text: "vanishing content"})
	if err := db.DeleteBook(ctx, id); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	ids, _ := db.SearchText(ctx, "vanishing", 10)
	if len(ids) != 0 {
		t.Errorf("deleted book still in FTS index: %v", ids)
	}
}
