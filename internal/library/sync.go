package library

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/shelf/internal/checksum"
	"github.com/starford/shelf/internal/models"
	"github.com/starford/shelf/internal/parser"
	"github.com/starford/shelf/internal/storage"
)

// SyncStats summarises one Sync pass.
type SyncStats struct {
	Indexed int
	Removed int
	Failed  int
}

// Sync walks the catalog and brings the store up to date:
//   - new or changed records are parsed and upserted
//   - books whose record vanished from disk are deleted
func Sync(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats

	metas, err := store.List("")
	if err != nil {
		return stats, err
	}
	checksums, err := db.AllChecksums(ctx)
	if err != nil {
		return stats, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if checksums[m.Path] == m.Checksum {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			stats.Failed++
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := IndexRecord(ctx, db, m.Path, data); err != nil {
			stats.Failed++
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		stats.Indexed++
		logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteBySource(ctx, p); err != nil {
			stats.Failed++
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	return stats, nil
}

// IndexRecord parses a catalog record and upserts the book it describes.
func IndexRecord(ctx context.Context, db *DB, source string, data []byte) (int64, error) {
	rec, err := parser.Parse(data)
	if err != nil {
		return 0, err
	}
	title := rec.Title
	if title == "" {
		title = strings.TrimSuffix(path.Base(source), storage.RecordExt)
	}
	files := make([]models.BookFile, 0, len(rec.Files))
	for _, f := range rec.Files {
		if f.Format == "" {
			continue
		}
		files = append(files, models.BookFile{Format: f.Format, Path: f.Path, Size: f.Size, Hash: f.Hash})
	}
	return db.UpsertBook(ctx, BookInput{
		ID:          rec.ID,
		Source:      source,
		Checksum:    checksum.Sum(data),
		Title:       title,
		Description: strings.TrimSpace(rec.Description),
		Year:        rec.Year,
		Language:    rec.Language,
		Publisher:   rec.Publisher,
		Color:       rec.Color,
		Text:        rec.Body,
		Authors:     rec.Authors,
		Subjects:    rec.Subjects,
		Tags:        rec.Tags,
		Files:       files,
	})
}
