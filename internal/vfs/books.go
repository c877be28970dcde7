package vfs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/starford/shelf/internal/apperr"
	"github.com/starford/shelf/internal/models"
)

// SimilarLimit is the number of entries listed under a book's similar/.
const SimilarLimit = 10

// BookPath returns the absolute path of a book directory.
func BookPath(id int64) string {
	return "/" + BooksDir + "/" + strconv.FormatInt(id, 10)
}

// parseID accepts only the canonical decimal form of a positive id, so
// "007" does not alias "7".
func parseID(name string) (int64, bool) {
	id, err := strconv.ParseInt(name, 10, 64)
	if err != nil || id <= 0 || strconv.FormatInt(id, 10) != name {
		return 0, false
	}
	return id, true
}

func (fs *FS) booksDir(parent Node) Node {
	return newDir(BooksDir, parent, KindVirtual,
		func(ctx context.Context, self Node) ([]Node, error) {
			books, err := fs.lib.ListBooks(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]Node, len(books))
			for i, b := range books {
				out[i] = fs.bookDir(self, b.ID)
			}
			return out, nil
		},
		func(ctx context.Context, self Node, name string) (Node, error) {
			id, ok := parseID(name)
			if !ok {
				return nil, nil
			}
			b, err := fs.lib.GetBook(ctx, id)
			if err != nil || b == nil {
				return nil, err
			}
			return fs.bookDir(self, id), nil
		})
}

// getBook loads a book or reports it as gone.
func (fs *FS) getBook(ctx context.Context, id int64) (*models.Book, error) {
	b, err := fs.lib.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("book %d: %w", id, apperr.ErrNotFound)
	}
	return b, nil
}

// bookField builds a read-only file showing one field of the book.
func (fs *FS) bookField(name string, parent Node, id int64, field func(*models.Book) string) Node {
	return newFile(name, parent, func(ctx context.Context) (string, error) {
		b, err := fs.getBook(ctx, id)
		if err != nil {
			return "", err
		}
		return field(b), nil
	}, nil)
}

func (fs *FS) bookDir(parent Node, id int64) Node {
	return newDir(strconv.FormatInt(id, 10), parent, KindVirtual,
		func(ctx context.Context, self Node) ([]Node, error) {
			return []Node{
				fs.bookField("title", self, id, func(b *models.Book) string { return b.Title }),
				newFile("authors", self, func(ctx context.Context) (string, error) {
					people, err := fs.lib.BookAuthors(ctx, id)
					if err != nil {
						return "", err
					}
					names := make([]string, len(people))
					for i, p := range people {
						names[i] = p.Name
					}
					return strings.Join(names, "\n"), nil
				}, nil),
				newFile("subjects", self, func(ctx context.Context) (string, error) {
					subjects, err := fs.lib.BookSubjects(ctx, id)
					if err != nil {
						return "", err
					}
					names := make([]string, len(subjects))
					for i, s := range subjects {
						names[i] = s.Name
					}
					return strings.Join(names, "\n"), nil
				}, nil),
				fs.bookField("description", self, id, func(b *models.Book) string { return b.Description }),
				fs.bookField("text", self, id, func(b *models.Book) string { return b.Text }),
				fs.bookField("year", self, id, func(b *models.Book) string {
					if b.Year == 0 {
						return ""
					}
					return strconv.Itoa(b.Year)
				}),
				fs.bookField("language", self, id, func(b *models.Book) string { return b.Language }),
				fs.bookField("publisher", self, id, func(b *models.Book) string { return b.Publisher }),
				newFile("metadata", self, func(ctx context.Context) (string, error) {
					return fs.bookMetadata(ctx, id)
				}, nil),
				newFile("color", self,
					func(ctx context.Context) (string, error) {
						b, err := fs.getBook(ctx, id)
						if err != nil {
							return "", err
						}
						return b.Color, nil
					},
					func(ctx context.Context, text string) error {
						return fs.lib.SetBookColor(ctx, id, strings.TrimSpace(text))
					}),
				fs.bookFilesDir(self, id),
				fs.similarDir(self, id),
				fs.bookTagsDir(self, id, nil),
			}, nil
		}, nil)
}

type bookMetadata struct {
	ID          int64          `yaml:"id"`
	Title       string         `yaml:"title"`
	Authors     []string       `yaml:"authors,omitempty"`
	Subjects    []string       `yaml:"subjects,omitempty"`
	Year        int            `yaml:"year,omitempty"`
	Language    string         `yaml:"language,omitempty"`
	Publisher   string         `yaml:"publisher,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Color       string         `yaml:"color,omitempty"`
	Tags        []string       `yaml:"tags,omitempty"`
	Files       []fileMetadata `yaml:"files,omitempty"`
}

type fileMetadata struct {
	Format string `yaml:"format"`
	Size   int64  `yaml:"size"`
	Hash   string `yaml:"hash,omitempty"`
	Path   string `yaml:"path,omitempty"`
}

func (fs *FS) bookMetadata(ctx context.Context, id int64) (string, error) {
	b, err := fs.getBook(ctx, id)
	if err != nil {
		return "", err
	}
	md := bookMetadata{
		ID: b.ID, Title: b.Title, Year: b.Year, Language: b.Language,
		Publisher: b.Publisher, Description: b.Description, Color: b.Color,
	}
	people, err := fs.lib.BookAuthors(ctx, id)
	if err != nil {
		return "", err
	}
	for _, p := range people {
		md.Authors = append(md.Authors, p.Name)
	}
	subjects, err := fs.lib.BookSubjects(ctx, id)
	if err != nil {
		return "", err
	}
	for _, s := range subjects {
		md.Subjects = append(md.Subjects, s.Name)
	}
	tags, err := fs.lib.BookTags(ctx, id)
	if err != nil {
		return "", err
	}
	for _, t := range tags {
		md.Tags = append(md.Tags, t.Path)
	}
	files, err := fs.lib.BookFiles(ctx, id)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		md.Files = append(md.Files, fileMetadata{Format: f.Format, Size: f.Size, Hash: f.Hash, Path: f.Path})
	}
	out, err := yaml.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("vfs: render metadata: %w", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// bookFilesDir lists one file per physical format. A format that occurs
// more than once is disambiguated by the file id.
func (fs *FS) bookFilesDir(parent Node, id int64) Node {
	return newDir("files", parent, KindVirtual, func(ctx context.Context, self Node) ([]Node, error) {
		files, err := fs.lib.BookFiles(ctx, id)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(files))
		out := make([]Node, 0, len(files))
		for _, f := range files {
			name := f.Format
			if name == "" {
				name = "file"
			}
			if seen[name] {
				name += "-" + strconv.FormatInt(f.ID, 10)
			}
			seen[name] = true
			out = append(out, staticFile(name, self, formatFileInfo(f)))
		}
		return out, nil
	}, nil)
}

func formatFileInfo(f models.BookFile) string {
	size := humanize.Bytes(uint64(max(f.Size, 0)))
	return fmt.Sprintf("format: %s\nsize: %s (%d bytes)\nhash: %s\npath: %s", f.Format, size, f.Size, f.Hash, f.Path)
}

func (fs *FS) similarDir(parent Node, id int64) Node {
	return newDir("similar", parent, KindVirtual, func(ctx context.Context, self Node) ([]Node, error) {
		similar, err := fs.lib.FindSimilar(ctx, id, SimilarLimit)
		if err != nil {
			return nil, err
		}
		out := make([]Node, len(similar))
		for i, s := range similar {
			out[i] = newScoredLink(strconv.FormatInt(s.Book.ID, 10), self, BookPath(s.Book.ID), s.Score)
		}
		return out, nil
	}, nil)
}
