package library

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/shelf/internal/apperr"
	"github.com/starford/shelf/internal/models"
)

// FindFields lists the fields a Filter may name.
var FindFields = []string{"title", "author", "subject", "tag", "year", "language", "publisher", "text"}

// Filter restricts FindBooks to books whose Field matches Value. Values with
// glob metacharacters are matched as case-insensitive globs, anything else
// as a case-insensitive substring. A tag filter also matches books tagged
// anywhere beneath the named tag.
type Filter struct {
	Field string
	Value string
}

// ParseFilter parses a "field:value" term.
func ParseFilter(term string) (Filter, error) {
	field, value, ok := strings.Cut(term, ":")
	if !ok || value == "" {
		return Filter{}, fmt.Errorf("%w: expected field:value, got %q", apperr.ErrInvalidArgument, term)
	}
	field = strings.ToLower(field)
	for _, f := range FindFields {
		if f == field {
			return Filter{Field: field, Value: value}, nil
		}
	}
	return Filter{}, fmt.Errorf("%w: unknown field %q (want one of %s)", apperr.ErrInvalidArgument, field, strings.Join(FindFields, ", "))
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

func (f Filter) matchString(s string) (bool, error) {
	v, s := strings.ToLower(f.Value), strings.ToLower(s)
	if !isGlob(v) {
		return strings.Contains(s, v), nil
	}
	ok, err := doublestar.Match(v, s)
	if err != nil {
		return false, fmt.Errorf("%w: %v", apperr.ErrBadPattern, err)
	}
	return ok, nil
}

func (f Filter) matchAny(values []string) (bool, error) {
	for _, v := range values {
		ok, err := f.matchString(v)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (f Filter) matchTag(paths []string) (bool, error) {
	v := strings.Trim(f.Value, "/")
	if isGlob(v) {
		return f.matchAny(paths)
	}
	for _, p := range paths {
		if strings.EqualFold(p, v) || strings.HasPrefix(strings.ToLower(p), strings.ToLower(v)+"/") {
			return true, nil
		}
	}
	return false, nil
}

// FindBooks returns the books matching every filter, ordered by id.
func (db *DB) FindBooks(ctx context.Context, filters []Filter) ([]models.Book, error) {
	books, err := db.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	var textHits map[int64]bool
	for _, f := range filters {
		if f.Field != "text" {
			continue
		}
		ids, err := db.SearchText(ctx, f.Value, len(books)+1)
		if err != nil {
			return nil, err
		}
		hits := make(map[int64]bool, len(ids))
		for _, id := range ids {
			if textHits == nil || textHits[id] {
				hits[id] = true
			}
		}
		textHits = hits
	}

	var out []models.Book
	for _, b := range books {
		ok, err := db.matchBook(ctx, b, filters, textHits)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (db *DB) matchBook(ctx context.Context, b models.Book, filters []Filter, textHits map[int64]bool) (bool, error) {
	for _, f := range filters {
		var ok bool
		var err error
		switch f.Field {
		case "title":
			ok, err = f.matchString(b.Title)
		case "language":
			ok, err = f.matchString(b.Language)
		case "publisher":
			ok, err = f.matchString(b.Publisher)
		case "year":
			year := ""
			if b.Year != 0 {
				year = strconv.Itoa(b.Year)
			}
			if isGlob(f.Value) {
				ok, err = f.matchString(year)
			} else {
				ok = year == f.Value
			}
		case "author":
			var people []models.Person
			if people, err = db.BookAuthors(ctx, b.ID); err == nil {
				names := make([]string, len(people))
				for i, p := range people {
					names[i] = p.Name
				}
				ok, err = f.matchAny(names)
			}
		case "subject":
			var subjects []models.Subject
			if subjects, err = db.BookSubjects(ctx, b.ID); err == nil {
				names := make([]string, len(subjects))
				for i, s := range subjects {
					names[i] = s.Name
				}
				ok, err = f.matchAny(names)
			}
		case "tag":
			var tags []models.Tag
			if tags, err = db.BookTags(ctx, b.ID); err == nil {
				paths := make([]string, len(tags))
				for i, t := range tags {
					paths[i] = t.Path
				}
				ok, err = f.matchTag(paths)
			}
		case "text":
			ok = textHits[b.ID]
		default:
			err = fmt.Errorf("%w: unknown field %q", apperr.ErrInvalidArgument, f.Field)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
