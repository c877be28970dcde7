package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/shelf/internal/apperr"
	"github.com/starford/shelf/internal/models"
)

const tagColumns = `id, name, path, parent_id, description, color, created_at`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetOrCreateTag returns the tag at path, creating it and every missing
// ancestor. Calling it again with the same path is a no-op.
func (db *DB) GetOrCreateTag(ctx context.Context, path string) (*models.Tag, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("library: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tag, err := getOrCreateTagTx(ctx, tx, path)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("library: commit: %w", err)
	}
	return tag, nil
}

func getOrCreateTagTx(ctx context.Context, tx *sql.Tx, path string) (*models.Tag, error) {
	segments, err := SplitTagPath(path)
	if err != nil {
		return nil, err
	}

	var parent *models.Tag
	for i, seg := range segments {
		current := strings.Join(segments[:i+1], "/")
		tag, err := getTag(ctx, tx, current)
		if err != nil {
			return nil, err
		}
		if tag == nil {
			var parentID *int64
			if parent != nil {
				parentID = &parent.ID
			}
			now := time.Now().UTC()
			res, err := tx.ExecContext(ctx, `INSERT INTO tags (name, path, parent_id, created_at) VALUES (?, ?, ?, ?)`,
				seg, current, parentID, now)
			if err != nil {
				return nil, fmt.Errorf("library: create tag %s: %w", current, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("library: create tag id: %w", err)
			}
			tag = &models.Tag{ID: id, Name: seg, Path: current, ParentID: parentID, CreatedAt: now}
		}
		parent = tag
	}
	return parent, nil
}

// GetTag returns the tag at path, or nil if there is none.
func (db *DB) GetTag(ctx context.Context, path string) (*models.Tag, error) {
	return getTag(ctx, db.conn, strings.Trim(path, "/"))
}

// GetTagByID returns the tag with id, or nil if it was deleted.
func (db *DB) GetTagByID(ctx context.Context, id int64) (*models.Tag, error) {
	return findTag(ctx, db.conn, `WHERE id = ?`, id)
}

// ChildTag returns the direct child of parentID called name, or nil.
func (db *DB) ChildTag(ctx context.Context, parentID int64, name string) (*models.Tag, error) {
	return findTag(ctx, db.conn, `WHERE parent_id = ? AND name = ?`, parentID, name)
}

func getTag(ctx context.Context, q querier, path string) (*models.Tag, error) {
	return findTag(ctx, q, `WHERE path = ?`, path)
}

func findTag(ctx context.Context, q querier, where string, args ...any) (*models.Tag, error) {
	row := q.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags `+where, args...)
	tag, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("library: get tag: %w", err)
	}
	return tag, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTag(row rowScanner) (*models.Tag, error) {
	var t models.Tag
	var parent sql.NullInt64
	if err := row.Scan(&t.ID, &t.Name, &t.Path, &parent, &t.Description, &t.Color, &t.CreatedAt); err != nil {
		return nil, err
	}
	if parent.Valid {
		p := parent.Int64
		t.ParentID = &p
	}
	return &t, nil
}

func queryTags(ctx context.Context, q querier, query string, args ...any) ([]models.Tag, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("library: query tags: %w", err)
	}
	defer rows.Close()
	var out []models.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ListTags returns every tag ordered by path.
func (db *DB) ListTags(ctx context.Context) ([]models.Tag, error) {
	return queryTags(ctx, db.conn, `SELECT `+tagColumns+` FROM tags ORDER BY path`)
}

// RootTags returns the tags without a parent, ordered by name.
func (db *DB) RootTags(ctx context.Context) ([]models.Tag, error) {
	return queryTags(ctx, db.conn, `SELECT `+tagColumns+` FROM tags WHERE parent_id IS NULL ORDER BY name`)
}

// ChildTags returns the direct children of a tag, ordered by name.
func (db *DB) ChildTags(ctx context.Context, tagID int64) ([]models.Tag, error) {
	return queryTags(ctx, db.conn, `SELECT `+tagColumns+` FROM tags WHERE parent_id = ? ORDER BY name`, tagID)
}

// DeleteTag removes the tag at path. A tag with descendants is only removed
// when recursive is set, in which case the whole subtree and every book
// association within it go in the same transaction. It returns the number
// of tags deleted.
func (db *DB) DeleteTag(ctx context.Context, path string, recursive bool) (int, error) {
	path = strings.Trim(path, "/")
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("library: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tag, err := getTag(ctx, tx, path)
	if err != nil {
		return 0, err
	}
	if tag == nil {
		return 0, fmt.Errorf("library: tag %s: %w", path, apperr.ErrNotFound)
	}

	prefix := path + "/"
	var descendants int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM tags WHERE substr(path, 1, length(?1)) = ?1`, prefix).Scan(&descendants); err != nil {
		return 0, fmt.Errorf("library: count descendants: %w", err)
	}
	if descendants > 0 && !recursive {
		return 0, fmt.Errorf("library: tag %s: %w", path, apperr.ErrTagHasChildren)
	}

	subtree := `SELECT id FROM tags WHERE path = ?1 OR substr(path, 1, length(?2)) = ?2`
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_tags WHERE tag_id IN (`+subtree+`)`, path, prefix); err != nil {
		return 0, fmt.Errorf("library: untag subtree: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE path = ?1 OR substr(path, 1, length(?2)) = ?2`, path, prefix)
	if err != nil {
		return 0, fmt.Errorf("library: delete subtree: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("library: rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("library: commit: %w", err)
	}
	return int(n), nil
}

// RenameTag moves the tag at oldPath to newPath and rewrites the path of
// every descendant by prefix substitution, atomically. Missing ancestors of
// newPath are created.
func (db *DB) RenameTag(ctx context.Context, oldPath, newPath string) error {
	oldPath = strings.Trim(oldPath, "/")
	segments, err := SplitTagPath(newPath)
	if err != nil {
		return err
	}
	newPath = strings.Join(segments, "/")
	if oldPath == newPath {
		return nil
	}
	if strings.HasPrefix(newPath, oldPath+"/") {
		return fmt.Errorf("library: cannot move tag %s beneath itself: %w", oldPath, apperr.ErrInvalidArgument)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("library: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tag, err := getTag(ctx, tx, oldPath)
	if err != nil {
		return err
	}
	if tag == nil {
		return fmt.Errorf("library: tag %s: %w", oldPath, apperr.ErrNotFound)
	}
	clash, err := getTag(ctx, tx, newPath)
	if err != nil {
		return err
	}
	if clash != nil {
		return fmt.Errorf("library: tag %s: %w", newPath, apperr.ErrDuplicateTagPath)
	}

	var parentID *int64
	if len(segments) > 1 {
		parent, err := getOrCreateTagTx(ctx, tx, strings.Join(segments[:len(segments)-1], "/"))
		if err != nil {
			return err
		}
		parentID = &parent.ID
	}

	name := segments[len(segments)-1]
	if _, err := tx.ExecContext(ctx, `UPDATE tags SET name = ?, path = ?, parent_id = ? WHERE id = ?`,
		name, newPath, parentID, tag.ID); err != nil {
		return fmt.Errorf("library: rename tag: %w", err)
	}
	oldPrefix, newPrefix := oldPath+"/", newPath+"/"
	if _, err := tx.ExecContext(ctx, `
		UPDATE tags SET path = ?1 || substr(path, length(?2) + 1)
		WHERE substr(path, 1, length(?2)) = ?2
	`, newPrefix, oldPrefix); err != nil {
		return fmt.Errorf("library: rewrite descendants: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("library: commit: %w", err)
	}
	return nil
}

// AddTagToBook associates a book with a tag. Repeating it is a no-op.
func (db *DB) AddTagToBook(ctx context.Context, bookID, tagID int64) error {
	if _, err := db.conn.ExecContext(ctx, `INSERT OR IGNORE INTO book_tags (book_id, tag_id) VALUES (?, ?)`, bookID, tagID); err != nil {
		return fmt.Errorf("library: add tag to book: %w", err)
	}
	return nil
}

// RemoveTagFromBook drops the association if present.
func (db *DB) RemoveTagFromBook(ctx context.Context, bookID, tagID int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM book_tags WHERE book_id = ? AND tag_id = ?`, bookID, tagID); err != nil {
		return fmt.Errorf("library: remove tag from book: %w", err)
	}
	return nil
}

// BookTags returns the tags assigned to a book, ordered by path.
func (db *DB) BookTags(ctx context.Context, bookID int64) ([]models.Tag, error) {
	return queryTags(ctx, db.conn, `
		SELECT t.id, t.name, t.path, t.parent_id, t.description, t.color, t.created_at
		FROM tags t JOIN book_tags bt ON bt.tag_id = t.id
		WHERE bt.book_id = ?
		ORDER BY t.path`, bookID)
}

// TagBooks returns the books directly assigned to a tag.
func (db *DB) TagBooks(ctx context.Context, tagID int64) ([]models.Book, error) {
	return db.queryBooks(ctx, `
		SELECT `+qualifiedBookColumns+` FROM books b
		JOIN book_tags bt ON bt.book_id = b.id
		WHERE bt.tag_id = ?
		ORDER BY b.id`, tagID)
}

// SetTagDescription replaces a tag's description.
func (db *DB) SetTagDescription(ctx context.Context, tagID int64, description string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE tags SET description = ? WHERE id = ?`, description, tagID)
	if err != nil {
		return fmt.Errorf("library: set tag description: %w", err)
	}
	return requireRow(res, "tag", tagID)
}

// SetTagColor replaces a tag's color. An empty color clears it.
func (db *DB) SetTagColor(ctx context.Context, tagID int64, color string) error {
	if err := ValidateColor(color); err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx, `UPDATE tags SET color = ? WHERE id = ?`, color, tagID)
	if err != nil {
		return fmt.Errorf("library: set tag color: %w", err)
	}
	return requireRow(res, "tag", tagID)
}
