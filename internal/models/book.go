// Package models defines the domain types for shelf.
package models

import "time"

// Book is a library entry projected read-only into the VFS.
type Book struct {
	ID          int64     `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Year        int       `json:"year,omitempty" yaml:"year,omitempty"`
	Language    string    `json:"language,omitempty" yaml:"language,omitempty"`
	Publisher   string    `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Color       string    `json:"color,omitempty" yaml:"color,omitempty"`
	Text        string    `json:"-" yaml:"-"`
	Source      string    `json:"source,omitempty" yaml:"source,omitempty"`
	Checksum    string    `json:"checksum,omitempty" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// Person is an author of one or more books.
type Person struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Subject is a subject heading shared by books.
type Subject struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BookFile describes one physical format of a book. Only the metadata is
// stored; the bytes live wherever Path points.
type BookFile struct {
	ID     int64  `json:"id"`
	BookID int64  `json:"book_id"`
	Format string `json:"format"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Hash   string `json:"hash"`
}

// Tag is a node in the user's hierarchical tag tree. Path is the
// materialized path ("Work/Project"); root tags have no slash.
type Tag struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Depth returns the number of separators in the tag path.
func (t Tag) Depth() int {
	n := 0
	for i := 0; i < len(t.Path); i++ {
		if t.Path[i] == '/' {
			n++
		}
	}
	return n
}

// Similar pairs a book with its similarity score.
type Similar struct {
	Book  Book    `json:"book"`
	Score float64 `json:"score"`
}

// BookRecordMetadata is a lightweight representation of a catalog record
// returned by storage list operations.
type BookRecordMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
