package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/starford/shelf/internal/apperr"
)

var errCommandNotFound = errors.New("command not found")

func (s *Shell) registerBuiltins() {
	for _, c := range []*Command{
		{Name: "cd", Usage: "cd [path]", Short: "Change the current directory", Run: s.cmdCd},
		{Name: "pwd", Usage: "pwd", Short: "Print the current directory", Run: s.cmdPwd},
		{Name: "ls", Usage: "ls [-l] [path...]", Short: "List a directory; the last segment may be a glob", Run: s.cmdLs},
		{Name: "tree", Usage: "tree [-L depth] [path]", Short: "Show a directory tree without following links", Run: s.cmdTree},
		{Name: "cat", Usage: "cat [file...]", Short: "Print files, or stdin", Run: s.cmdCat},
		{Name: "echo", Usage: "echo [text...]", Short: "Print the arguments", Run: s.cmdEcho},
		{Name: "grep", Usage: "grep [-r -i -n] <pattern> [path...]", Short: "Print lines matching a regular expression", Run: s.cmdGrep},
		{Name: "find", Usage: "find field:value...", Short: "Find books by title, author, subject, tag, year, language, publisher or text", Run: s.cmdFind},
		{Name: "head", Usage: "head [-n N] [file]", Short: "Print the first lines", Run: s.cmdHead},
		{Name: "tail", Usage: "tail [-n N] [file]", Short: "Print the last lines", Run: s.cmdTail},
		{Name: "wc", Usage: "wc [-l|-w|-c] [file]", Short: "Count lines, words and characters", Run: s.cmdWc},
		{Name: "sort", Usage: "sort [-r] [file]", Short: "Sort lines", Run: s.cmdSort},
		{Name: "uniq", Usage: "uniq [-c] [file]", Short: "Collapse adjacent duplicate lines", Run: s.cmdUniq},
		{Name: "ln", Usage: "ln <book-path> <tag-path>", Short: "Tag a book", Run: s.cmdLn, Mutates: true},
		{Name: "mv", Usage: "mv <tag-path>/<id> <tag-path> | mv <tag-path> <tag-path>", Short: "Move a book between tags, or rename a tag", Run: s.cmdMv, Mutates: true},
		{Name: "rm", Usage: "rm [-r] <path...>", Short: "Untag a book or delete a tag", Run: s.cmdRm, Mutates: true},
		{Name: "mkdir", Usage: "mkdir [-p] <tag-path...>", Short: "Create tags", Run: s.cmdMkdir, Mutates: true},
		{Name: "help", Usage: "help [command]", Short: "Show help", Run: s.cmdHelp},
		{Name: "exit", Usage: "exit", Short: "Leave the shell", Run: cmdExit},
		{Name: "quit", Usage: "quit", Short: "Leave the shell", Run: cmdExit},
	} {
		s.Register(c)
	}
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	return fs.Args(), nil
}

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{apperr.ErrInvalidArgument}, args...)...)
}

// input returns the text a filter reads: the named files joined by
// newlines, or stdin when no file is named.
func (s *Shell) input(ctx context.Context, c *Call, paths []string) (string, error) {
	if len(paths) == 0 {
		if c.Stdin == nil {
			return "", usageError("missing file operand")
		}
		return *c.Stdin, nil
	}
	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		text, err := s.fs.ReadFile(ctx, p, s.cwd)
		if err != nil {
			return "", err
		}
		parts = append(parts, strings.TrimSuffix(text, "\n"))
	}
	return strings.Join(parts, "\n"), nil
}

func textOutput(s string) *Output { return &Output{Text: s} }

func cmdExit(context.Context, *Call) (*Output, error) {
	return &Output{Exit: true}, nil
}

func (s *Shell) cmdHelp(_ context.Context, c *Call) (*Output, error) {
	if len(c.Args) > 0 {
		cmd, ok := s.commands[c.Args[0]]
		if !ok {
			return nil, fmt.Errorf("%s: %w", c.Args[0], errCommandNotFound)
		}
		return textOutput(fmt.Sprintf("usage: %s\n%s", cmd.Usage, cmd.Short)), nil
	}
	var b strings.Builder
	b.WriteString("Commands:")
	for _, cmd := range s.Commands() {
		fmt.Fprintf(&b, "\n  %-44s %s", cmd.Usage, cmd.Short)
	}
	b.WriteString("\n\nPipe with |, redirect into a writable file with >.")
	return textOutput(b.String()), nil
}
