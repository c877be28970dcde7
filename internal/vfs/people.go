package vfs

import (
	"context"
	"strconv"

	"github.com/starford/shelf/internal/models"
)

// entityKind describes one of the name-keyed trees (authors, subjects).
type entityKind struct {
	dir   string
	slug  func(string) string
	list  func(ctx context.Context) ([]named, error)
	books func(ctx context.Context, id int64) ([]models.Book, error)
}

func (fs *FS) authorsDir(parent Node) Node {
	return fs.entityDir(parent, entityKind{
		dir:  AuthorsDir,
		slug: PersonSlug,
		list: func(ctx context.Context) ([]named, error) {
			people, err := fs.lib.ListAuthors(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]named, len(people))
			for i, p := range people {
				out[i] = named{id: p.ID, name: p.Name}
			}
			return out, nil
		},
		books: fs.lib.BooksByAuthor,
	})
}

func (fs *FS) subjectsDir(parent Node) Node {
	return fs.entityDir(parent, entityKind{
		dir:  SubjectsDir,
		slug: Slug,
		list: func(ctx context.Context) ([]named, error) {
			subjects, err := fs.lib.ListSubjects(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]named, len(subjects))
			for i, s := range subjects {
				out[i] = named{id: s.ID, name: s.Name}
			}
			return out, nil
		},
		books: fs.lib.BooksBySubject,
	})
}

// entityDir lists one directory per entity, named by its slug. Slugs depend
// on every entity of the kind, so lookups list them all.
func (fs *FS) entityDir(parent Node, kind entityKind) Node {
	return newDir(kind.dir, parent, KindVirtual, func(ctx context.Context, self Node) ([]Node, error) {
		entities, err := kind.list(ctx)
		if err != nil {
			return nil, err
		}
		slugs := assignSlugs(entities, kind.slug)
		out := make([]Node, len(entities))
		for i, e := range entities {
			out[i] = fs.entityNode(self, slugs[i], e, kind)
		}
		return out, nil
	}, nil)
}

func (fs *FS) entityNode(parent Node, slug string, e named, kind entityKind) Node {
	return newDir(slug, parent, KindVirtual, func(_ context.Context, self Node) ([]Node, error) {
		return []Node{
			staticFile("name", self, e.name),
			newDir("books", self, KindVirtual, func(ctx context.Context, books Node) ([]Node, error) {
				list, err := kind.books(ctx, e.id)
				if err != nil {
					return nil, err
				}
				out := make([]Node, len(list))
				for i, b := range list {
					out[i] = newLink(strconv.FormatInt(b.ID, 10), books, BookPath(b.ID))
				}
				return out, nil
			}, nil),
		}, nil
	}, nil)
}
