package vfs

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/starford/shelf/internal/apperr"
)

// MaxSymlinkHops bounds the number of links followed in one resolution.
const MaxSymlinkHops = 40

type walk struct {
	hops    int
	visited map[string]bool
}

// Resolve walks p from current, or from the root when p is absolute. A nil
// current means the root. Links met on the way are always followed; a link
// named by the last segment is followed only when follow is set. Targets are
// resolved from the root.
//
// A path that names nothing resolves to (nil, nil). Walking through a file
// fails with apperr.ErrNotADirectory, and a chain of links longer than
// MaxSymlinkHops or one that revisits a link fails with apperr.ErrSymlinkLoop.
func (fs *FS) Resolve(ctx context.Context, p string, current Node, follow bool) (Node, error) {
	return fs.resolve(ctx, p, current, follow, &walk{visited: make(map[string]bool)})
}

func (fs *FS) resolve(ctx context.Context, p string, current Node, follow bool, w *walk) (Node, error) {
	if current == nil {
		current = fs.root
	}
	if p == "" || p == "." {
		return current, nil
	}

	node := current
	if strings.HasPrefix(p, "/") {
		node = fs.root
	}
	var segments []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	for i, seg := range segments {
		switch seg {
		case ".":
			continue
		case "..":
			if parent := node.Parent(); parent != nil {
				node = parent
			}
			continue
		}

		dir, ok := node.(Dir)
		if !ok || !IsDir(node) {
			return nil, fmt.Errorf("%s: %w", Path(node), apperr.ErrNotADirectory)
		}
		child, err := dir.Child(ctx, seg)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, nil
		}
		last := i == len(segments)-1
		if link, ok := child.(Symlink); ok && (follow || !last) {
			child, err = fs.follow(ctx, link, w)
			if err != nil {
				return nil, err
			}
			if child == nil {
				return nil, nil
			}
		}
		node = child
	}
	return node, nil
}

func (fs *FS) follow(ctx context.Context, link Symlink, w *walk) (Node, error) {
	key := Path(link)
	if w.visited[key] || w.hops >= MaxSymlinkHops {
		return nil, fmt.Errorf("%s: %w", key, apperr.ErrSymlinkLoop)
	}
	w.hops++
	w.visited[key] = true
	defer delete(w.visited, key)
	return fs.resolve(ctx, link.Target(), fs.root, true, w)
}

// ResolveDir is Resolve narrowed to directories. A path naming anything
// other than a directory resolves to (nil, nil).
func (fs *FS) ResolveDir(ctx context.Context, p string, current Node) (Dir, error) {
	n, err := fs.Resolve(ctx, p, current, true)
	if err != nil || n == nil || !IsDir(n) {
		return nil, err
	}
	d, ok := n.(Dir)
	if !ok {
		return nil, nil
	}
	return d, nil
}

// Lookup is Resolve that reports absence as apperr.ErrPathNotFound.
func (fs *FS) Lookup(ctx context.Context, p string, current Node, follow bool) (Node, error) {
	n, err := fs.Resolve(ctx, p, current, follow)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("%s: %w", p, apperr.ErrPathNotFound)
	}
	return n, nil
}

// NormalizePath returns the absolute path of the node p resolves to. When p
// does not resolve the path is cleaned as a string, relative paths being
// joined to the path of current.
func (fs *FS) NormalizePath(ctx context.Context, p string, current Node) string {
	if current == nil {
		current = fs.root
	}
	if n, err := fs.Resolve(ctx, p, current, true); err == nil && n != nil {
		return Path(n)
	}
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return path.Clean(Path(current) + "/" + p)
}

// ReadFile resolves p and returns the content of the file it names.
func (fs *FS) ReadFile(ctx context.Context, p string, current Node) (string, error) {
	n, err := fs.Lookup(ctx, p, current, true)
	if err != nil {
		return "", err
	}
	f, ok := n.(File)
	if !ok {
		return "", fmt.Errorf("%s: %w", p, apperr.ErrIsADirectory)
	}
	return f.Read(ctx)
}

// WriteFile replaces the content of the existing file p names. Only files
// that report Writable accept content.
func (fs *FS) WriteFile(ctx context.Context, p string, current Node, text string) error {
	n, err := fs.Lookup(ctx, p, current, true)
	if err != nil {
		return err
	}
	f, ok := n.(File)
	if !ok {
		return fmt.Errorf("%s: %w", p, apperr.ErrIsADirectory)
	}
	if !f.Writable() {
		return fmt.Errorf("%s: %w", p, apperr.ErrReadOnlyWrite)
	}
	return f.Write(ctx, text)
}

// CompletePath returns the completions of partial: every child of its
// directory part whose name starts with the last segment. The directory
// part is kept as typed and directories, including links to them, end in
// "/". Results are sorted.
func (fs *FS) CompletePath(ctx context.Context, partial string, current Node) ([]string, error) {
	if current == nil {
		current = fs.root
	}
	dirPart, prefix := "", partial
	if i := strings.LastIndex(partial, "/"); i >= 0 {
		dirPart, prefix = partial[:i+1], partial[i+1:]
	}

	var dir Dir
	if dirPart == "" {
		d, ok := current.(Dir)
		if !ok {
			return nil, nil
		}
		dir = d
	} else {
		d, err := fs.ResolveDir(ctx, dirPart, current)
		if err != nil || d == nil {
			return nil, err
		}
		dir = d
	}

	children, err := dir.Children(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, c := range children {
		if !strings.HasPrefix(c.Name(), prefix) {
			continue
		}
		name := dirPart + c.Name()
		if fs.listable(ctx, c) {
			name += "/"
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// listable reports whether n is a directory or a link that resolves to one.
func (fs *FS) listable(ctx context.Context, n Node) bool {
	if IsDir(n) {
		return true
	}
	link, ok := n.(Symlink)
	if !ok {
		return false
	}
	target, err := fs.Resolve(ctx, link.Target(), fs.root, true)
	return err == nil && target != nil && IsDir(target)
}
