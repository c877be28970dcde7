package shell

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/shelf/internal/apperr"
	"github.com/starford/shelf/internal/textutil"
	"github.com/starford/shelf/internal/vfs"
)

func (s *Shell) cmdEcho(_ context.Context, c *Call) (*Output, error) {
	return textOutput(strings.Join(c.Args, " ")), nil
}

func (s *Shell) cmdCat(ctx context.Context, c *Call) (*Output, error) {
	in, err := s.input(ctx, c, c.Args)
	if err != nil {
		return nil, err
	}
	return textOutput(in), nil
}

// singleInput parses flags and reads the optional file operand.
func (s *Shell) singleInput(ctx context.Context, c *Call, args []string) (string, error) {
	if len(args) > 1 {
		return "", usageError("too many arguments")
	}
	return s.input(ctx, c, args)
}

func (s *Shell) lineFilter(ctx context.Context, c *Call, name string, fn func(string, int) string) (*Output, error) {
	fl := newFlags(name)
	n := fl.IntP("lines", "n", 10, "number of lines")
	args, err := parseFlags(fl, c.Args)
	if err != nil {
		return nil, err
	}
	if *n < 0 {
		return nil, usageError("invalid line count %d", *n)
	}
	in, err := s.singleInput(ctx, c, args)
	if err != nil {
		return nil, err
	}
	return textOutput(fn(in, *n)), nil
}

func (s *Shell) cmdHead(ctx context.Context, c *Call) (*Output, error) {
	return s.lineFilter(ctx, c, "head", textutil.Head)
}

func (s *Shell) cmdTail(ctx context.Context, c *Call) (*Output, error) {
	return s.lineFilter(ctx, c, "tail", textutil.Tail)
}

func (s *Shell) cmdWc(ctx context.Context, c *Call) (*Output, error) {
	fl := newFlags("wc")
	lines := fl.BoolP("lines", "l", false, "count lines")
	words := fl.BoolP("words", "w", false, "count words")
	chars := fl.BoolP("chars", "c", false, "count characters")
	args, err := parseFlags(fl, c.Args)
	if err != nil {
		return nil, err
	}
	in, err := s.singleInput(ctx, c, args)
	if err != nil {
		return nil, err
	}
	return textOutput(textutil.WC(in, *lines, *words, *chars)), nil
}

func (s *Shell) cmdSort(ctx context.Context, c *Call) (*Output, error) {
	fl := newFlags("sort")
	reverse := fl.BoolP("reverse", "r", false, "reverse order")
	args, err := parseFlags(fl, c.Args)
	if err != nil {
		return nil, err
	}
	in, err := s.singleInput(ctx, c, args)
	if err != nil {
		return nil, err
	}
	return textOutput(textutil.Sort(in, *reverse)), nil
}

func (s *Shell) cmdUniq(ctx context.Context, c *Call) (*Output, error) {
	fl := newFlags("uniq")
	count := fl.BoolP("count", "c", false, "prefix lines with their run length")
	args, err := parseFlags(fl, c.Args)
	if err != nil {
		return nil, err
	}
	in, err := s.singleInput(ctx, c, args)
	if err != nil {
		return nil, err
	}
	return textOutput(textutil.Uniq(in, *count)), nil
}

func (s *Shell) cmdGrep(ctx context.Context, c *Call) (*Output, error) {
	fl := newFlags("grep")
	recursive := fl.BoolP("recursive", "r", false, "search directories recursively")
	ignoreCase := fl.BoolP("ignore-case", "i", false, "case-insensitive match")
	lineNumbers := fl.BoolP("line-number", "n", false, "prefix matches with line numbers")
	args, err := parseFlags(fl, c.Args)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, usageError("missing pattern")
	}
	re, err := textutil.CompilePattern(args[0], *ignoreCase)
	if err != nil {
		return nil, err
	}
	paths := args[1:]

	if len(paths) == 0 {
		if c.Stdin == nil {
			return nil, usageError("missing file operand")
		}
		return textOutput(strings.Join(textutil.Match(*c.Stdin, re, *lineNumbers), "\n")), nil
	}

	g := grepper{re: re, lineNumbers: *lineNumbers, prefix: len(paths) > 1 || *recursive}
	for _, p := range paths {
		n, err := s.fs.Lookup(ctx, p, s.cwd, true)
		if err != nil {
			return nil, err
		}
		switch {
		case !vfs.IsDir(n):
			if err := g.file(ctx, p, n); err != nil {
				return nil, err
			}
		case *recursive:
			if err := g.walk(ctx, n.(vfs.Dir)); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%s: %w", p, apperr.ErrIsADirectory)
		}
	}
	return textOutput(strings.Join(g.out, "\n")), nil
}

type grepper struct {
	re          *regexp.Regexp
	lineNumbers bool
	prefix      bool
	out         []string
}

func (g *grepper) file(ctx context.Context, name string, n vfs.Node) error {
	f, ok := n.(vfs.File)
	if !ok {
		return nil
	}
	content, err := f.Read(ctx)
	if err != nil {
		return err
	}
	for _, line := range textutil.Match(content, g.re, g.lineNumbers) {
		if g.prefix {
			line = name + ":" + line
		}
		g.out = append(g.out, line)
	}
	return nil
}

// walk greps every file below dir. Links are not followed.
func (g *grepper) walk(ctx context.Context, dir vfs.Dir) error {
	children, err := dir.Children(ctx)
	if err != nil {
		return err
	}
	sortNodes(children)
	for _, child := range children {
		switch child.Kind() {
		case vfs.KindFile:
			if err := g.file(ctx, vfs.Path(child), child); err != nil {
				return err
			}
		case vfs.KindDir, vfs.KindVirtual:
			if err := g.walk(ctx, child.(vfs.Dir)); err != nil {
				return err
			}
		case vfs.KindSymlink:
		}
	}
	return nil
}
