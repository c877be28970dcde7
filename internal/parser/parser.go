// Package parser reads catalog book records: Markdown files whose YAML
// frontmatter carries the bibliographic metadata and whose body holds the
// extracted full text.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileEntry is one physical format listed in a record.
type FileEntry struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	Hash   string `yaml:"hash"`
}

// Record holds the output of parsing a book record.
type Record struct {
	ID          int64       `yaml:"id"`
	Title       string      `yaml:"title"`
	Authors     StringList  `yaml:"authors"`
	Subjects    StringList  `yaml:"subjects"`
	Year        int         `yaml:"year"`
	Language    string      `yaml:"language"`
	Publisher   string      `yaml:"publisher"`
	Description string      `yaml:"description"`
	Color       string      `yaml:"color"`
	Tags        StringList  `yaml:"tags"`
	Files       []FileEntry `yaml:"files"`

	Body string `yaml:"-"`
}

// StringList accepts either a YAML scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = splitNonEmpty([]string{node.Value})
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = splitNonEmpty(items)
		return nil
	default:
		return fmt.Errorf("parser: line %d: expected string or list", node.Line)
	}
}

func splitNonEmpty(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Parse extracts the frontmatter metadata and the body from a record.
// Records without frontmatter are accepted and carry only a body; malformed
// frontmatter is an error.
func Parse(data []byte) (*Record, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	rec := &Record{}
	if fm != nil {
		if err := yaml.Unmarshal(fm, rec); err != nil {
			return nil, fmt.Errorf("parser: frontmatter: %w", err)
		}
	}
	rec.Body = body
	if rec.Title == "" {
		rec.Title = firstHeading(body)
	}
	for i := range rec.Files {
		rec.Files[i].Format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(rec.Files[i].Format), "."))
	}
	return rec, nil
}

// splitFrontmatter separates YAML between leading --- delimiters from the
// body. Without an opening delimiter the whole content is body.
func splitFrontmatter(data []byte) ([]byte, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", fmt.Errorf("parser: unterminated frontmatter")
	}

	block := rest[:idx]
	after := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(after), "\n\r")
	return block, body, nil
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
