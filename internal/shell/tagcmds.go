package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/shelf/internal/apperr"
	"github.com/starford/shelf/internal/models"
	"github.com/starford/shelf/internal/vfs"
)

// tagPathOf maps a VFS path under /tags to a tag path. The path does not
// have to exist.
func (s *Shell) tagPathOf(ctx context.Context, arg string) (string, error) {
	p := s.fs.NormalizePath(ctx, arg, s.cwd)
	root := "/" + vfs.TagsDir + "/"
	if !strings.HasPrefix(p, root) || len(p) == len(root) {
		return "", usageError("%s: not a tag path", arg)
	}
	return strings.TrimPrefix(p, root), nil
}

// bookIDOf reports the id of a /books/<id> directory.
func bookIDOf(n vfs.Node) (int64, bool) {
	rest, ok := strings.CutPrefix(vfs.Path(n), "/"+vfs.BooksDir+"/")
	if !ok || strings.Contains(rest, "/") {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	return id, err == nil
}

// enclosingBook finds the book directory above n.
func enclosingBook(n vfs.Node) (int64, bool) {
	for ; n != nil; n = n.Parent() {
		if id, ok := bookIDOf(n); ok {
			return id, true
		}
	}
	return 0, false
}

// tagOf reloads the tag behind a directory node, whose own copy may predate
// a rename.
func (s *Shell) tagOf(ctx context.Context, n vfs.TagNode) (*models.Tag, error) {
	tag, err := s.fs.Library().GetTagByID(ctx, n.Tag().ID)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, fmt.Errorf("%s: %w", vfs.Path(n), apperr.ErrPathNotFound)
	}
	return tag, nil
}

func (s *Shell) cmdLn(ctx context.Context, c *Call) (*Output, error) {
	if len(c.Args) != 2 {
		return nil, usageError("usage: ln <book-path> <tag-path>")
	}
	n, err := s.fs.Lookup(ctx, c.Args[0], s.cwd, true)
	if err != nil {
		return nil, err
	}
	bookID, ok := bookIDOf(n)
	if !ok {
		return nil, usageError("%s: not a book", c.Args[0])
	}
	tagPath, err := s.tagPathOf(ctx, c.Args[1])
	if err != nil {
		return nil, err
	}
	lib := s.fs.Library()
	tag, err := lib.GetOrCreateTag(ctx, tagPath)
	if err != nil {
		return nil, err
	}
	if err := lib.AddTagToBook(ctx, bookID, tag.ID); err != nil {
		return nil, err
	}
	return &Output{}, nil
}

func (s *Shell) cmdMv(ctx context.Context, c *Call) (*Output, error) {
	if len(c.Args) != 2 {
		return nil, usageError("usage: mv <tag-path>/<id> <tag-path> | mv <tag-path> <tag-path>")
	}
	src, err := s.fs.Lookup(ctx, c.Args[0], s.cwd, false)
	if err != nil {
		return nil, err
	}
	dest, err := s.tagPathOf(ctx, c.Args[1])
	if err != nil {
		return nil, err
	}
	lib := s.fs.Library()

	switch n := src.(type) {
	case vfs.TagNode:
		tag, err := s.tagOf(ctx, n)
		if err != nil {
			return nil, err
		}
		if err := lib.RenameTag(ctx, tag.Path, dest); err != nil {
			return nil, err
		}
		return &Output{}, nil
	case vfs.Symlink:
		from, ok := n.Parent().(vfs.TagNode)
		if !ok {
			break
		}
		bookID, err := strconv.ParseInt(n.Name(), 10, 64)
		if err != nil {
			break
		}
		fromTag, err := s.tagOf(ctx, from)
		if err != nil {
			return nil, err
		}
		if fromTag.Path == dest {
			return &Output{}, nil
		}
		to, err := lib.GetOrCreateTag(ctx, dest)
		if err != nil {
			return nil, err
		}
		if err := lib.AddTagToBook(ctx, bookID, to.ID); err != nil {
			return nil, err
		}
		if err := lib.RemoveTagFromBook(ctx, bookID, from.Tag().ID); err != nil {
			return nil, err
		}
		return &Output{}, nil
	}
	return nil, usageError("%s: not a tag or a tagged book", c.Args[0])
}

func (s *Shell) cmdRm(ctx context.Context, c *Call) (*Output, error) {
	fl := newFlags("rm")
	recursive := fl.BoolP("recursive", "r", false, "delete a tag and everything below it")
	paths, err := parseFlags(fl, c.Args)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, usageError("missing operand")
	}
	for _, p := range paths {
		if err := s.remove(ctx, p, *recursive); err != nil {
			return nil, err
		}
	}
	return &Output{}, nil
}

func (s *Shell) remove(ctx context.Context, p string, recursive bool) error {
	n, err := s.fs.Lookup(ctx, p, s.cwd, false)
	if err != nil {
		return err
	}
	lib := s.fs.Library()

	switch v := n.(type) {
	case vfs.TagNode:
		tag, err := s.tagOf(ctx, v)
		if err != nil {
			return err
		}
		_, err = lib.DeleteTag(ctx, tag.Path, recursive)
		if errors.Is(err, apperr.ErrTagHasChildren) {
			return fmt.Errorf("%s: %w (use -r)", p, apperr.ErrTagHasChildren)
		}
		return err
	case vfs.Symlink:
		// A book link inside a tag directory.
		if parent, ok := v.Parent().(vfs.TagNode); ok {
			bookID, err := strconv.ParseInt(v.Name(), 10, 64)
			if err == nil {
				return lib.RemoveTagFromBook(ctx, bookID, parent.Tag().ID)
			}
		}
		// A tag link inside a book's tags/ view.
		if tagPath, ok := strings.CutPrefix(v.Target(), "/"+vfs.TagsDir+"/"); ok {
			if bookID, ok := enclosingBook(v); ok {
				tag, err := lib.GetTag(ctx, tagPath)
				if err != nil {
					return err
				}
				if tag == nil {
					return fmt.Errorf("%s: %w", p, apperr.ErrBrokenSymlink)
				}
				return lib.RemoveTagFromBook(ctx, bookID, tag.ID)
			}
		}
	}
	return fmt.Errorf("cannot remove %s: not removable: %w", p, apperr.ErrInvalidArgument)
}

func (s *Shell) cmdMkdir(ctx context.Context, c *Call) (*Output, error) {
	fl := newFlags("mkdir")
	parents := fl.BoolP("parents", "p", false, "no error if the tag exists")
	paths, err := parseFlags(fl, c.Args)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, usageError("missing operand")
	}
	lib := s.fs.Library()
	for _, p := range paths {
		tagPath, err := s.tagPathOf(ctx, p)
		if err != nil {
			return nil, err
		}
		if !*parents {
			existing, err := lib.GetTag(ctx, tagPath)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, fmt.Errorf("%s: %w", p, apperr.ErrAlreadyExists)
			}
		}
		if _, err := lib.GetOrCreateTag(ctx, tagPath); err != nil {
			return nil, err
		}
	}
	return &Output{}, nil
}
