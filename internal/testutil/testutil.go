// Package testutil provides shared test helpers for setting up catalogs and
// seeded libraries.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/shelf/internal/library"
	"github.com/starford/shelf/internal/models"
	"github.com/starford/shelf/internal/storage"
)

// TestDB creates a temporary SQLite library that is automatically cleaned up.
func TestDB(t *testing.T) *library.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "shelf-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := library.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestCatalog creates a temporary catalog directory with a storage.Provider.
func TestCatalog(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Seeded book ids.
const (
	DuneID        int64 = 7
	LeftHandID    int64 = 12
	EarthseaID    int64 = 15
	NeuromancerID int64 = 21
)

// SeedLibrary returns a library holding four books. Dune and The Left Hand
// of Darkness share a subject; the two Le Guin books share an author. No
// tags are assigned.
func SeedLibrary(t *testing.T) *library.DB {
	t.Helper()
	db := TestDB(t)
	books := []library.BookInput{
		{
			ID: DuneID, Source: "dune.md", Title: "Dune", Year: 1965, Language: "en",
			Publisher: "Chilton Books", Description: "Desert planet politics.",
			Authors: []string{"Frank Herbert"}, Subjects: []string{"Science Fiction", "Ecology"},
			Text: "A beginning is the time for taking the most delicate care.\nThe spice must flow.",
			Files: []models.BookFile{
				{Format: "epub", Path: "/media/books/dune.epub", Size: 1536000, Hash: "b3:aa11"},
				{Format: "pdf", Path: "/media/books/dune.pdf", Size: 4200000, Hash: "b3:bb22"},
			},
		},
		{
			ID: LeftHandID, Source: "left-hand.md", Title: "The Left Hand of Darkness", Year: 1969, Language: "en",
			Publisher: "Ace Books",
			Authors:   []string{"Ursula K Le Guin"}, Subjects: []string{"Science Fiction", "Gender"},
			Text: "I'll make my report as if I told a story.",
		},
		{
			ID: EarthseaID, Source: "earthsea.md", Title: "A Wizard of Earthsea", Year: 1968, Language: "en",
			Authors: []string{"Ursula K Le Guin"}, Subjects: []string{"Fantasy"},
		},
		{
			ID: NeuromancerID, Source: "neuromancer.md", Title: "Neuromancer", Year: 1984, Language: "en",
			Authors: []string{"William Gibson"}, Subjects: []string{"Cyberpunk"},
		},
	}
	for _, b := range books {
		if _, err := db.UpsertBook(context.Background(), b); err != nil {
			t.Fatalf("seed %s: %v", b.Source, err)
		}
	}
	return db
}
