package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/shelf/internal/library"
	"github.com/starford/shelf/internal/vfs"
)

func (s *Shell) cmdFind(ctx context.Context, c *Call) (*Output, error) {
	if len(c.Args) == 0 {
		return nil, usageError("expected field:value (fields: %s)", strings.Join(library.FindFields, ", "))
	}
	filters := make([]library.Filter, 0, len(c.Args))
	for _, arg := range c.Args {
		f, err := library.ParseFilter(arg)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	books, err := s.fs.Library().FindBooks(ctx, filters)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(books))
	for i, b := range books {
		lines[i] = fmt.Sprintf("%s  %s", vfs.BookPath(b.ID), b.Title)
	}
	return textOutput(strings.Join(lines, "\n")), nil
}
