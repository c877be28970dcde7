package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/starford/shelf/internal/apperr"
	"github.com/starford/shelf/internal/models"
)

// BookInput is everything a catalog record contributes to the store.
// ID zero lets the store assign one; otherwise the id is pinned.
type BookInput struct {
	ID          int64
	Source      string
	Checksum    string
	Title       string
	Description string
	Year        int
	Language    string
	Publisher   string
	Color       string
	Text        string
	Authors     []string
	Subjects    []string
	Tags        []string
	Files       []models.BookFile
	UpdatedAt   time.Time
}

const (
	bookColumns          = `id, source, checksum, title, description, year, language, publisher, color, updated_at`
	qualifiedBookColumns = `b.id, b.source, b.checksum, b.title, b.description, b.year, b.language, b.publisher, b.color, b.updated_at`
)

// UpsertBook inserts or replaces a book keyed by its catalog source, along
// with its authors, subjects and files, in one transaction. Tags listed in
// the input are added to the book; tags assigned from the shell are kept.
func (db *DB) UpsertBook(ctx context.Context, in BookInput) (int64, error) {
	if in.Source == "" {
		return 0, fmt.Errorf("library: upsert book: %w: empty source", apperr.ErrInvalidArgument)
	}
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = time.Now().UTC()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("library: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM books WHERE source = ?`, in.Source).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("library: lookup source: %w", err)
	}

	if in.ID != 0 {
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT source FROM books WHERE id = ?`, in.ID).Scan(&owner)
		switch {
		case err == nil && owner != in.Source:
			return 0, fmt.Errorf("library: book id %d already used by %s: %w", in.ID, owner, apperr.ErrConflict)
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return 0, fmt.Errorf("library: lookup id: %w", err)
		}
		if existing != 0 && existing != in.ID {
			// The record was renumbered; drop the old row and its associations.
			ftsDelete(tx, existing)
			if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, existing); err != nil {
				return 0, fmt.Errorf("library: drop renumbered book: %w", err)
			}
			existing = 0
		}
	}

	id := existing
	if id == 0 {
		var res sql.Result
		if in.ID != 0 {
			res, err = tx.ExecContext(ctx, `
				INSERT INTO books (id, source, checksum, title, description, year, language, publisher, color, text, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, in.ID, in.Source, in.Checksum, in.Title, in.Description, in.Year, in.Language, in.Publisher, in.Color, in.Text, in.UpdatedAt)
		} else {
			res, err = tx.ExecContext(ctx, `
				INSERT INTO books (source, checksum, title, description, year, language, publisher, color, text, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, in.Source, in.Checksum, in.Title, in.Description, in.Year, in.Language, in.Publisher, in.Color, in.Text, in.UpdatedAt)
		}
		if err != nil {
			return 0, fmt.Errorf("library: insert book: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("library: insert book id: %w", err)
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE books SET
				checksum    = ?,
				title       = ?,
				description = ?,
				year        = ?,
				language    = ?,
				publisher   = ?,
				color       = CASE WHEN ? <> '' THEN ? ELSE color END,
				text        = ?,
				updated_at  = ?
			WHERE id = ?
		`, in.Checksum, in.Title, in.Description, in.Year, in.Language, in.Publisher, in.Color, in.Color, in.Text, in.UpdatedAt, id)
		if err != nil {
			return 0, fmt.Errorf("library: update book: %w", err)
		}
	}

	if err := ftsUpsert(tx, id, in.Title, in.Description, in.Text); err != nil {
		return 0, err
	}
	if err := replaceAuthors(ctx, tx, id, in.Authors); err != nil {
		return 0, err
	}
	if err := replaceSubjects(ctx, tx, id, in.Subjects); err != nil {
		return 0, err
	}
	if err := replaceFiles(ctx, tx, id, in.Files); err != nil {
		return 0, err
	}
	for _, p := range in.Tags {
		tag, err := getOrCreateTagTx(ctx, tx, p)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO book_tags (book_id, tag_id) VALUES (?, ?)`, id, tag.ID); err != nil {
			return 0, fmt.Errorf("library: tag book: %w", err)
		}
	}
	if err := pruneOrphans(ctx, tx); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("library: commit: %w", err)
	}
	return id, nil
}

func replaceAuthors(ctx context.Context, tx *sql.Tx, bookID int64, names []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_authors WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("library: clear authors: %w", err)
	}
	for i, name := range names {
		aid, err := upsertName(ctx, tx, "authors", name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO book_authors (book_id, author_id, position) VALUES (?, ?, ?)`, bookID, aid, i); err != nil {
			return fmt.Errorf("library: link author: %w", err)
		}
	}
	return nil
}

func replaceSubjects(ctx context.Context, tx *sql.Tx, bookID int64, names []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_subjects WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("library: clear subjects: %w", err)
	}
	for _, name := range names {
		sid, err := upsertName(ctx, tx, "subjects", name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO book_subjects (book_id, subject_id) VALUES (?, ?)`, bookID, sid); err != nil {
			return fmt.Errorf("library: link subject: %w", err)
		}
	}
	return nil
}

// upsertName returns the id of name in table (authors or subjects).
func upsertName(ctx context.Context, tx *sql.Tx, table, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO `+table+` (name) VALUES (?)`, name); err != nil {
		return 0, fmt.Errorf("library: insert %s: %w", table, err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("library: lookup %s: %w", table, err)
	}
	return id, nil
}

func replaceFiles(ctx context.Context, tx *sql.Tx, bookID int64, files []models.BookFile) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_files WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("library: clear files: %w", err)
	}
	if len(files) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO book_files (book_id, format, path, size, hash) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("library: prepare file insert: %w", err)
	}
	defer stmt.Close()
	for _, f := range files {
		if _, err := stmt.ExecContext(ctx, bookID, f.Format, f.Path, f.Size, f.Hash); err != nil {
			return fmt.Errorf("library: insert file: %w", err)
		}
	}
	return nil
}

func pruneOrphans(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM authors WHERE id NOT IN (SELECT author_id FROM book_authors)`); err != nil {
		return fmt.Errorf("library: prune authors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subjects WHERE id NOT IN (SELECT subject_id FROM book_subjects)`); err != nil {
		return fmt.Errorf("library: prune subjects: %w", err)
	}
	return nil
}

// DeleteBook removes a book and every association that references it.
func (db *DB) DeleteBook(ctx context.Context, id int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("library: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id); err != nil {
		return fmt.Errorf("library: delete book: %w", err)
	}
	if err := pruneOrphans(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteBySource removes the book imported from a catalog record.
func (db *DB) DeleteBySource(ctx context.Context, source string) error {
	var id int64
	err := db.conn.QueryRowContext(ctx, `SELECT id FROM books WHERE source = ?`, source).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("library: lookup source: %w", err)
	}
	return db.DeleteBook(ctx, id)
}

// AllChecksums maps every catalog source to its stored checksum.
func (db *DB) AllChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT source, checksum FROM books`)
	if err != nil {
		return nil, fmt.Errorf("library: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var src, cs string
		if err := rows.Scan(&src, &cs); err != nil {
			return nil, err
		}
		out[src] = cs
	}
	return out, rows.Err()
}

// GetChecksum returns the stored checksum for a source, or "" if unknown.
func (db *DB) GetChecksum(ctx context.Context, source string) (string, error) {
	var cs string
	err := db.conn.QueryRowContext(ctx, `SELECT checksum FROM books WHERE source = ?`, source).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("library: get checksum: %w", err)
	}
	return cs, nil
}

// BookBySource returns the book imported from a catalog record, or nil if
// no book came from source.
func (db *DB) BookBySource(ctx context.Context, source string) (*models.Book, error) {
	books, err := db.queryBooks(ctx, `SELECT `+bookColumns+` FROM books WHERE source = ?`, source)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, nil
	}
	return &books[0], nil
}

// RenameSource repoints a book at a moved catalog record. The book keeps
// its id and tags.
func (db *DB) RenameSource(ctx context.Context, oldSource, newSource string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE books SET source = ? WHERE source = ?`, newSource, oldSource)
	if err != nil {
		return fmt.Errorf("library: rename source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("library: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("library: source %s: %w", oldSource, apperr.ErrNotFound)
	}
	return nil
}

// GetBook returns one book including its full text.
func (db *DB) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+bookColumns+`, text FROM books WHERE id = ?`, id)
	var b models.Book
	err := row.Scan(&b.ID, &b.Source, &b.Checksum, &b.Title, &b.Description, &b.Year,
		&b.Language, &b.Publisher, &b.Color, &b.UpdatedAt, &b.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("library: get book: %w", err)
	}
	return &b, nil
}

// ListBooks returns every book ordered by id, without full text.
func (db *DB) ListBooks(ctx context.Context) ([]models.Book, error) {
	return db.queryBooks(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
}

// BooksByAuthor returns the books written by an author.
func (db *DB) BooksByAuthor(ctx context.Context, authorID int64) ([]models.Book, error) {
	return db.queryBooks(ctx, `
		SELECT `+qualifiedBookColumns+` FROM books b
		JOIN book_authors ba ON ba.book_id = b.id
		WHERE ba.author_id = ?
		ORDER BY b.id`, authorID)
}

// BooksBySubject returns the books filed under a subject.
func (db *DB) BooksBySubject(ctx context.Context, subjectID int64) ([]models.Book, error) {
	return db.queryBooks(ctx, `
		SELECT `+qualifiedBookColumns+` FROM books b
		JOIN book_subjects bs ON bs.book_id = b.id
		WHERE bs.subject_id = ?
		ORDER BY b.id`, subjectID)
}

func (db *DB) queryBooks(ctx context.Context, query string, args ...any) ([]models.Book, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("library: query books: %w", err)
	}
	defer rows.Close()
	var out []models.Book
	for rows.Next() {
		var b models.Book
		if err := rows.Scan(&b.ID, &b.Source, &b.Checksum, &b.Title, &b.Description, &b.Year,
			&b.Language, &b.Publisher, &b.Color, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListAuthors returns every author ordered by id.
func (db *DB) ListAuthors(ctx context.Context) ([]models.Person, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name FROM authors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("library: list authors: %w", err)
	}
	defer rows.Close()
	var out []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListSubjects returns every subject ordered by id.
func (db *DB) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name FROM subjects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("library: list subjects: %w", err)
	}
	defer rows.Close()
	var out []models.Subject
	for rows.Next() {
		var s models.Subject
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// BookAuthors returns a book's authors in credit order.
func (db *DB) BookAuthors(ctx context.Context, bookID int64) ([]models.Person, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT a.id, a.name FROM authors a
		JOIN book_authors ba ON ba.author_id = a.id
		WHERE ba.book_id = ?
		ORDER BY ba.position, a.id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("library: book authors: %w", err)
	}
	defer rows.Close()
	var out []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// BookSubjects returns a book's subjects ordered by name.
func (db *DB) BookSubjects(ctx context.Context, bookID int64) ([]models.Subject, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT s.id, s.name FROM subjects s
		JOIN book_subjects bs ON bs.subject_id = s.id
		WHERE bs.book_id = ?
		ORDER BY s.name`, bookID)
	if err != nil {
		return nil, fmt.Errorf("library: book subjects: %w", err)
	}
	defer rows.Close()
	var out []models.Subject
	for rows.Next() {
		var s models.Subject
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// BookFiles returns the physical formats of a book.
func (db *DB) BookFiles(ctx context.Context, bookID int64) ([]models.BookFile, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, book_id, format, path, size, hash FROM book_files
		WHERE book_id = ? ORDER BY id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("library: book files: %w", err)
	}
	defer rows.Close()
	var out []models.BookFile
	for rows.Next() {
		var f models.BookFile
		if err := rows.Scan(&f.ID, &f.BookID, &f.Format, &f.Path, &f.Size, &f.Hash); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SetBookColor stores a display color for a book. An empty color clears it.
func (db *DB) SetBookColor(ctx context.Context, bookID int64, color string) error {
	if err := ValidateColor(color); err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx, `UPDATE books SET color = ? WHERE id = ?`, color, bookID)
	if err != nil {
		return fmt.Errorf("library: set book color: %w", err)
	}
	return requireRow(res, "book", bookID)
}

// FindSimilar ranks other books by the Jaccard similarity of their combined
// author and subject sets. Books sharing nothing are omitted.
func (db *DB) FindSimilar(ctx context.Context, bookID int64, topK int) ([]models.Similar, error) {
	if topK <= 0 {
		topK = 10
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT book_id, 'a' || author_id FROM book_authors
		UNION ALL
		SELECT book_id, 's' || subject_id FROM book_subjects`)
	if err != nil {
		return nil, fmt.Errorf("library: similarity features: %w", err)
	}
	features := make(map[int64]map[string]struct{})
	for rows.Next() {
		var id int64
		var key string
		if err := rows.Scan(&id, &key); err != nil {
			rows.Close()
			return nil, err
		}
		set, ok := features[id]
		if !ok {
			set = make(map[string]struct{})
			features[id] = set
		}
		set[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	target := features[bookID]
	if len(target) == 0 {
		return nil, nil
	}

	type scored struct {
		id    int64
		score float64
	}
	var ranked []scored
	for id, set := range features {
		if id == bookID {
			continue
		}
		shared := 0
		for k := range set {
			if _, ok := target[k]; ok {
				shared++
			}
		}
		if shared == 0 {
			continue
		}
		union := len(target) + len(set) - shared
		ranked = append(ranked, scored{id: id, score: float64(shared) / float64(union)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	out := make([]models.Similar, 0, len(ranked))
	for _, r := range ranked {
		b, err := db.GetBook(ctx, r.id)
		if err != nil {
			return nil, err
		}
		if b == nil {
			continue
		}
		b.Text = ""
		out = append(out, models.Similar{Book: *b, Score: r.score})
	}
	return out, nil
}

func requireRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("library: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("library: %s %d: %w", kind, id, apperr.ErrNotFound)
	}
	return nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
