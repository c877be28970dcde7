// Package storage defines the catalog directory abstraction. A catalog is a
// directory tree of Markdown book records, one file per book.
package storage

import "github.com/starford/shelf/internal/models"

// RecordExt is the file extension of catalog book records.
const RecordExt = ".md"

// Provider is the interface for catalog file operations.
type Provider interface {
	// List returns metadata for every record under dir (relative to the catalog root).
	List(dir string) ([]models.BookRecordMetadata, error)
	// Read returns the raw bytes of the record at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the record at path.
	Write(path string, content []byte) error
	// Delete removes the record at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Root returns the absolute catalog directory.
	Root() string
}
