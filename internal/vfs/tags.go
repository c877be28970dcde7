package vfs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/shelf/internal/apperr"
	"github.com/starford/shelf/internal/models"
)

// Writable files inside every tag directory.
const (
	TagDescriptionFile = "description"
	TagColorFile       = "color"
)

// TagPath returns the absolute path of a tag directory.
func TagPath(tagPath string) string {
	return "/" + TagsDir + "/" + strings.Trim(tagPath, "/")
}

// TagNode is implemented by the directories of the /tags tree.
type TagNode interface {
	Dir
	// Tag returns the tag as it was when the node was built.
	Tag() models.Tag
}

type tagDir struct {
	*dirNode
	tag models.Tag
}

func (t *tagDir) Tag() models.Tag { return t.tag }

func (fs *FS) tagsRoot(parent Node) Node {
	return newDir(TagsDir, parent, KindVirtual,
		func(ctx context.Context, self Node) ([]Node, error) {
			roots, err := fs.lib.RootTags(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]Node, len(roots))
			for i, t := range roots {
				out[i] = fs.tagDir(self, t)
			}
			return out, nil
		},
		func(ctx context.Context, self Node, name string) (Node, error) {
			tag, err := fs.lib.GetTag(ctx, name)
			if err != nil || tag == nil {
				return nil, err
			}
			return fs.tagDir(self, *tag), nil
		})
}

func (fs *FS) tagDir(parent Node, tag models.Tag) *tagDir {
	td := &tagDir{tag: tag}
	td.dirNode = newDir(tag.Name, parent, KindVirtual,
		func(ctx context.Context, _ Node) ([]Node, error) { return fs.tagChildren(ctx, td) },
		func(ctx context.Context, _ Node, name string) (Node, error) { return fs.tagChild(ctx, td, name) })
	return td
}

func (fs *FS) tagChildren(ctx context.Context, td *tagDir) ([]Node, error) {
	children, err := fs.lib.ChildTags(ctx, td.tag.ID)
	if err != nil {
		return nil, err
	}
	books, err := fs.lib.TagBooks(ctx, td.tag.ID)
	if err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(children)+len(books)+2)
	taken := make(map[string]bool, len(children))
	for _, c := range children {
		out = append(out, fs.tagDir(td, c))
		taken[c.Name] = true
	}
	for _, b := range books {
		name := strconv.FormatInt(b.ID, 10)
		if taken[name] {
			continue // a subtag of the same name wins
		}
		out = append(out, newLink(name, td, BookPath(b.ID)))
	}
	out = append(out, fs.tagDescription(td), fs.tagColor(td))
	return out, nil
}

// tagChild resolves by tag id, so a directory built before a rename of one
// of its ancestors still finds its children. Subtags shadow book ids.
func (fs *FS) tagChild(ctx context.Context, td *tagDir, name string) (Node, error) {
	switch name {
	case TagDescriptionFile:
		return fs.tagDescription(td), nil
	case TagColorFile:
		return fs.tagColor(td), nil
	}
	child, err := fs.lib.ChildTag(ctx, td.tag.ID, name)
	if err != nil {
		return nil, err
	}
	if child != nil {
		return fs.tagDir(td, *child), nil
	}
	id, ok := parseID(name)
	if !ok {
		return nil, nil
	}
	books, err := fs.lib.TagBooks(ctx, td.tag.ID)
	if err != nil {
		return nil, err
	}
	for _, b := range books {
		if b.ID == id {
			return newLink(name, td, BookPath(id)), nil
		}
	}
	return nil, nil
}

// currentTag reloads the tag so reads see writes made through other nodes.
func (fs *FS) currentTag(ctx context.Context, td *tagDir) (*models.Tag, error) {
	tag, err := fs.lib.GetTagByID(ctx, td.tag.ID)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, fmt.Errorf("tag %s: %w", td.tag.Path, apperr.ErrNotFound)
	}
	return tag, nil
}

func (fs *FS) tagDescription(td *tagDir) Node {
	return newFile(TagDescriptionFile, td,
		func(ctx context.Context) (string, error) {
			tag, err := fs.currentTag(ctx, td)
			if err != nil {
				return "", err
			}
			return tag.Description, nil
		},
		func(ctx context.Context, text string) error {
			return fs.lib.SetTagDescription(ctx, td.tag.ID, text)
		})
}

func (fs *FS) tagColor(td *tagDir) Node {
	return newFile(TagColorFile, td,
		func(ctx context.Context) (string, error) {
			tag, err := fs.currentTag(ctx, td)
			if err != nil {
				return "", err
			}
			return tag.Color, nil
		},
		func(ctx context.Context, text string) error {
			return fs.lib.SetTagColor(ctx, td.tag.ID, strings.TrimSpace(text))
		})
}
