package library

import (
	"context"

	"github.com/starford/shelf/internal/models"
)

// Library is the query surface the virtual filesystem consumes. Lookups of a
// single entity return (nil, nil) when it does not exist.
type Library interface {
	TagStore

	GetBook(ctx context.Context, id int64) (*models.Book, error)
	ListBooks(ctx context.Context) ([]models.Book, error)
	ListAuthors(ctx context.Context) ([]models.Person, error)
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	BookAuthors(ctx context.Context, bookID int64) ([]models.Person, error)
	BookSubjects(ctx context.Context, bookID int64) ([]models.Subject, error)
	BookFiles(ctx context.Context, bookID int64) ([]models.BookFile, error)
	BooksByAuthor(ctx context.Context, authorID int64) ([]models.Book, error)
	BooksBySubject(ctx context.Context, subjectID int64) ([]models.Book, error)
	FindSimilar(ctx context.Context, bookID int64, topK int) ([]models.Similar, error)
	SearchText(ctx context.Context, query string, limit int) ([]int64, error)
	FindBooks(ctx context.Context, filters []Filter) ([]models.Book, error)
	SetBookColor(ctx context.Context, bookID int64, color string) error
}

// TagStore owns the hierarchical, materialized-path tag table.
type TagStore interface {
	GetOrCreateTag(ctx context.Context, path string) (*models.Tag, error)
	GetTag(ctx context.Context, path string) (*models.Tag, error)
	GetTagByID(ctx context.Context, id int64) (*models.Tag, error)
	ChildTag(ctx context.Context, parentID int64, name string) (*models.Tag, error)
	ListTags(ctx context.Context) ([]models.Tag, error)
	RootTags(ctx context.Context) ([]models.Tag, error)
	ChildTags(ctx context.Context, tagID int64) ([]models.Tag, error)
	DeleteTag(ctx context.Context, path string, recursive bool) (int, error)
	RenameTag(ctx context.Context, oldPath, newPath string) error
	AddTagToBook(ctx context.Context, bookID, tagID int64) error
	RemoveTagFromBook(ctx context.Context, bookID, tagID int64) error
	BookTags(ctx context.Context, bookID int64) ([]models.Tag, error)
	TagBooks(ctx context.Context, tagID int64) ([]models.Book, error)
	SetTagDescription(ctx context.Context, tagID int64, description string) error
	SetTagColor(ctx context.Context, tagID int64, color string) error
}

// Verify *DB satisfies Library at compile time.
var _ Library = (*DB)(nil)
