package shell

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"

	"github.com/starford/shelf/internal/apperr"
	"github.com/starford/shelf/internal/vfs"
)

func (s *Shell) cmdCd(ctx context.Context, c *Call) (*Output, error) {
	if len(c.Args) > 1 {
		return nil, usageError("too many arguments")
	}
	target := "/"
	if len(c.Args) == 1 {
		target = c.Args[0]
	}
	if err := s.Chdir(ctx, target); err != nil {
		return nil, err
	}
	return &Output{}, nil
}

// Chdir makes p the current directory. The directory is left unchanged
// when p does not resolve to one.
func (s *Shell) Chdir(ctx context.Context, p string) error {
	n, err := s.fs.Lookup(ctx, p, s.cwd, true)
	if err != nil {
		return err
	}
	if !vfs.IsDir(n) {
		return fmt.Errorf("%s: %w", p, apperr.ErrNotADirectory)
	}
	s.cwd = n
	return nil
}

func (s *Shell) cmdPwd(context.Context, *Call) (*Output, error) {
	return textOutput(s.Pwd()), nil
}

func sortNodes(nodes []vfs.Node) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Name() < nodes[j].Name() })
}

func hasGlob(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// listPath returns what ls shows for p: the children of a directory, the
// node itself otherwise, or the entries matching a glob in the last segment.
func (s *Shell) listPath(ctx context.Context, p string) ([]vfs.Node, error) {
	n, err := s.fs.Resolve(ctx, p, s.cwd, true)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return s.listGlob(ctx, p)
	}
	dir, ok := n.(vfs.Dir)
	if !ok || !vfs.IsDir(n) {
		return []vfs.Node{n}, nil
	}
	children, err := dir.Children(ctx)
	if err != nil {
		return nil, err
	}
	sortNodes(children)
	return children, nil
}

func (s *Shell) listGlob(ctx context.Context, p string) ([]vfs.Node, error) {
	dirPart, pattern := ".", p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		dirPart, pattern = p[:i+1], p[i+1:]
	}
	if !hasGlob(pattern) {
		return nil, fmt.Errorf("%s: %w", p, apperr.ErrPathNotFound)
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%s: %w", p, apperr.ErrBadPattern)
	}
	dir, err := s.fs.ResolveDir(ctx, dirPart, s.cwd)
	if err != nil {
		return nil, err
	}
	if dir == nil {
		return nil, fmt.Errorf("%s: %w", p, apperr.ErrPathNotFound)
	}
	children, err := dir.Children(ctx)
	if err != nil {
		return nil, err
	}
	var out []vfs.Node
	for _, c := range children {
		if ok, _ := doublestar.Match(pattern, c.Name()); ok {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", p, apperr.ErrPathNotFound)
	}
	sortNodes(out)
	return out, nil
}

// EntryOf describes n for listings.
func EntryOf(n vfs.Node) Entry {
	e := Entry{Name: n.Name(), Kind: n.Kind()}
	if link, ok := n.(vfs.Symlink); ok {
		e.Target = link.Target()
	}
	if t, ok := n.(vfs.TagNode); ok {
		e.Color = t.Tag().Color
	}
	return e
}

// longLine renders one ls -l line: type marker, size or score, name and
// link target.
func longLine(ctx context.Context, n vfs.Node) string {
	marker, size := "d", "-"
	switch v := n.(type) {
	case vfs.File:
		marker = "-"
		if content, err := v.Read(ctx); err == nil {
			size = humanize.Bytes(uint64(len(content)))
		} else {
			size = "?"
		}
		if v.Writable() {
			marker = "w"
		}
	case vfs.Symlink:
		marker = "l"
		if score, ok := v.Score(); ok {
			size = fmt.Sprintf("%.2f", score)
		}
	}
	line := fmt.Sprintf("%s %8s  %s", marker, size, n.Name())
	if link, ok := n.(vfs.Symlink); ok {
		line += " -> " + link.Target()
	}
	return line
}

func (s *Shell) cmdLs(ctx context.Context, c *Call) (*Output, error) {
	fl := newFlags("ls")
	long := fl.BoolP("long", "l", false, "long listing")
	paths, err := parseFlags(fl, c.Args)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		paths = []string{"."}
	}

	out := &Output{}
	var sections []string
	for _, p := range paths {
		nodes, err := s.listPath(ctx, p)
		if err != nil {
			return nil, err
		}
		lines := make([]string, len(nodes))
		for i, n := range nodes {
			if *long {
				lines[i] = longLine(ctx, n)
			} else {
				lines[i] = n.Name()
			}
			out.Entries = append(out.Entries, EntryOf(n))
		}
		section := strings.Join(lines, "\n")
		if len(paths) > 1 {
			section = p + ":\n" + section
		}
		sections = append(sections, section)
	}
	out.Text = strings.Join(sections, "\n\n")
	return out, nil
}

func (s *Shell) cmdTree(ctx context.Context, c *Call) (*Output, error) {
	fl := newFlags("tree")
	depth := fl.IntP("level", "L", 2, "maximum depth")
	args, err := parseFlags(fl, c.Args)
	if err != nil {
		return nil, err
	}
	if *depth < 1 {
		return nil, usageError("depth must be at least 1")
	}
	if len(args) > 1 {
		return nil, usageError("too many arguments")
	}
	p := "."
	if len(args) == 1 {
		p = args[0]
	}
	n, err := s.fs.Lookup(ctx, p, s.cwd, true)
	if err != nil {
		return nil, err
	}
	dir, ok := n.(vfs.Dir)
	if !ok || !vfs.IsDir(n) {
		return nil, fmt.Errorf("%s: %w", p, apperr.ErrNotADirectory)
	}

	var b strings.Builder
	b.WriteString(vfs.Path(n))
	if err := treeWalk(ctx, &b, dir, "", 1, *depth); err != nil {
		return nil, err
	}
	return textOutput(b.String()), nil
}

func treeWalk(ctx context.Context, b *strings.Builder, dir vfs.Dir, prefix string, level, maxLevel int) error {
	children, err := dir.Children(ctx)
	if err != nil {
		return err
	}
	sortNodes(children)
	for i, child := range children {
		connector, indent := "├── ", "│   "
		if i == len(children)-1 {
			connector, indent = "└── ", "    "
		}
		b.WriteString("\n" + prefix + connector + child.Name())
		if link, ok := child.(vfs.Symlink); ok {
			b.WriteString(" -> " + link.Target())
			continue
		}
		if sub, ok := child.(vfs.Dir); ok && vfs.IsDir(child) && level < maxLevel {
			if err := treeWalk(ctx, b, sub, prefix+indent, level+1, maxLevel); err != nil {
				return err
			}
		}
	}
	return nil
}
