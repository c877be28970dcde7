package library

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/shelf/internal/apperr"
)

// ReservedTagNames are file names the tag views expose, so no tag segment
// may take them. Purely numeric names are allowed: a subtag shadows a book
// link of the same name.
var ReservedTagNames = []any{"description", "color", ".tag", ".", ".."}

var (
	numericRe = regexp.MustCompile(`^[0-9]+$`)
	colorRe   = regexp.MustCompile(`^(#[0-9a-fA-F]{3}|#[0-9a-fA-F]{6}|[0-9]{1,3})$`)
)

// SplitTagPath validates a tag path and returns its segments. Leading and
// trailing slashes are ignored; empty inner segments are rejected.
func SplitTagPath(path string) ([]string, error) {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("library: empty tag path: %w", apperr.ErrInvalidArgument)
	}
	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		if err := ValidateTagName(seg); err != nil {
			return nil, fmt.Errorf("library: tag path %q: %w", path, err)
		}
	}
	return segments, nil
}

// ValidateTagName checks one tag path segment.
func ValidateTagName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, 128),
		validation.NotIn(ReservedTagNames...).Error("is a reserved name"),
		validation.By(func(v any) error {
			s, _ := v.(string)
			if strings.ContainsAny(s, "/|>\n\t") {
				return errors.New("contains a forbidden character")
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("%q %v: %w", name, err, apperr.ErrInvalidArgument)
	}
	return nil
}

// ValidateColor accepts "", "#rgb", "#rrggbb" or an ANSI 256 palette index.
func ValidateColor(color string) error {
	if color == "" {
		return nil
	}
	err := validation.Validate(color,
		validation.Match(colorRe).Error("must be #rgb, #rrggbb or a palette index"),
		validation.By(func(v any) error {
			s, _ := v.(string)
			if numericRe.MatchString(s) && len(s) == 3 && s > "255" {
				return errors.New("palette index must be 0-255")
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("color %q %v: %w", color, err, apperr.ErrInvalidArgument)
	}
	return nil
}
