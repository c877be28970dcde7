// Package catalog manages the Markdown book records behind the library.
// Every write lands in the catalog directory first and is then indexed, so
// the directory stays the source of truth and a later Sync agrees with it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/starford/shelf/internal/apperr"
	"github.com/starford/shelf/internal/checksum"
	"github.com/starford/shelf/internal/library"
	"github.com/starford/shelf/internal/parser"
	"github.com/starford/shelf/internal/storage"
)

// RecordDetail is the full representation of a catalog record.
type RecordDetail struct {
	Path      string    `json:"path"`
	BookID    int64     `json:"book_id"`
	Title     string    `json:"title"`
	Authors   []string  `json:"authors"`
	Subjects  []string  `json:"subjects"`
	Tags      []string  `json:"tags"`
	Content   string    `json:"content"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordListItem is a lightweight item in a list response.
type RecordListItem struct {
	Path      string    `json:"path"`
	BookID    int64     `json:"book_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service coordinates catalog storage and the library index.
type Service struct {
	store storage.Provider
	db    *library.DB
}

// NewService creates a new catalog service.
func NewService(store storage.Provider, db *library.DB) *Service {
	return &Service{store: store, db: db}
}

// ValidatePath rejects record paths that the catalog would never list.
func ValidatePath(p string) error {
	if p == "" {
		return fmt.Errorf("%w: record path is required", apperr.ErrInvalidArgument)
	}
	if path.Ext(p) != storage.RecordExt {
		return fmt.Errorf("%w: record path must end in %s", apperr.ErrInvalidArgument, storage.RecordExt)
	}
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return fmt.Errorf("%w: hidden path segment %q", apperr.ErrInvalidArgument, seg)
		}
	}
	return nil
}

// GetRecord reads a record and the book indexed from it.
func (s *Service) GetRecord(ctx context.Context, p string) (*RecordDetail, error) {
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(ctx, p, data)
}

// CreateRecord writes a new record and indexes it.
func (s *Service) CreateRecord(ctx context.Context, p string, content []byte) (*RecordDetail, error) {
	if err := ValidatePath(p); err != nil {
		return nil, err
	}
	if _, err := s.store.Read(p); err == nil {
		return nil, fmt.Errorf("catalog: %s: %w", p, apperr.ErrAlreadyExists)
	}
	return s.put(ctx, p, content, nil)
}

// UpdateRecord replaces a record. A non-empty ifMatch must equal the
// checksum of the stored record.
func (s *Service) UpdateRecord(ctx context.Context, p string, content []byte, ifMatch string) (*RecordDetail, error) {
	existing, err := s.read(p)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, fmt.Errorf("catalog: %s: %w", p, apperr.ErrConflict)
	}
	return s.put(ctx, p, content, existing)
}

// DeleteRecord removes a record and the book indexed from it.
func (s *Service) DeleteRecord(ctx context.Context, p string) error {
	if _, err := s.read(p); err != nil {
		return err
	}
	if err := s.store.Delete(p); err != nil {
		return err
	}
	return s.db.DeleteBySource(ctx, p)
}

// MoveRecord renames a record. The book keeps its id and tags.
func (s *Service) MoveRecord(ctx context.Context, oldPath, newPath string) (*RecordDetail, error) {
	if err := ValidatePath(newPath); err != nil {
		return nil, err
	}
	data, err := s.read(oldPath)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Read(newPath); err == nil {
		return nil, fmt.Errorf("catalog: %s: %w", newPath, apperr.ErrAlreadyExists)
	}
	if err := s.store.Move(oldPath, newPath); err != nil {
		return nil, err
	}
	if err := s.db.RenameSource(ctx, oldPath, newPath); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	return s.buildDetail(ctx, newPath, data)
}

// ListRecords returns every record in the catalog, ordered by path, joined
// with the book each one produced.
func (s *Service) ListRecords(ctx context.Context) ([]RecordListItem, error) {
	metas, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	items := make([]RecordListItem, 0, len(metas))
	for _, m := range metas {
		item := RecordListItem{Path: m.Path, Checksum: m.Checksum, UpdatedAt: m.UpdatedAt}
		b, err := s.db.BookBySource(ctx, m.Path)
		if err != nil {
			return nil, err
		}
		if b != nil {
			item.BookID = b.ID
			item.Title = b.Title
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) read(p string) ([]byte, error) {
	if err := ValidatePath(p); err != nil {
		return nil, err
	}
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("catalog: %s: %w", p, apperr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// put parses before writing so a malformed record never reaches the
// catalog directory. When indexing fails the previous record is restored,
// or the new one removed when there was none.
func (s *Service) put(ctx context.Context, p string, content, previous []byte) (*RecordDetail, error) {
	if _, err := parser.Parse(content); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	if err := s.store.Write(p, content); err != nil {
		return nil, err
	}
	if _, err := library.IndexRecord(ctx, s.db, p, content); err != nil {
		var undo error
		if previous == nil {
			undo = s.store.Delete(p)
		} else {
			undo = s.store.Write(p, previous)
		}
		return nil, errors.Join(err, undo)
	}
	return s.buildDetail(ctx, p, content)
}

func (s *Service) buildDetail(ctx context.Context, p string, data []byte) (*RecordDetail, error) {
	rec, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	d := &RecordDetail{
		Path:      p,
		Title:     rec.Title,
		Authors:   nonNilSlice([]string(rec.Authors)),
		Subjects:  nonNilSlice([]string(rec.Subjects)),
		Tags:      nonNilSlice([]string(rec.Tags)),
		Content:   string(data),
		Checksum:  checksum.Sum(data),
		UpdatedAt: time.Now().UTC(),
	}
	b, err := s.db.BookBySource(ctx, p)
	if err != nil {
		return nil, err
	}
	if b != nil {
		d.BookID = b.ID
		d.Title = b.Title
		d.UpdatedAt = b.UpdatedAt
	}
	return d, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
