package vfs

import (
	"context"

	"github.com/starford/shelf/internal/library"
)

// Top-level directory names.
const (
	BooksDir    = "books"
	AuthorsDir  = "authors"
	SubjectsDir = "subjects"
	TagsDir     = "tags"
)

// FS is the virtual filesystem over a library. It is safe to share between
// shell sessions; each session keeps its own current directory.
type FS struct {
	lib  library.Library
	root Node
}

// New returns the filesystem rooted at "/" with the books, authors,
// subjects and tags trees beneath it.
func New(lib library.Library) *FS {
	fs := &FS{lib: lib}
	fs.root = newDir("", nil, KindDir, fs.listRoot, nil)
	return fs
}

// Root returns the "/" directory.
func (fs *FS) Root() Node { return fs.root }

// Library returns the library the filesystem projects.
func (fs *FS) Library() library.Library { return fs.lib }

func (fs *FS) listRoot(_ context.Context, self Node) ([]Node, error) {
	return []Node{
		fs.booksDir(self),
		fs.authorsDir(self),
		fs.subjectsDir(self),
		fs.tagsRoot(self),
	}, nil
}
