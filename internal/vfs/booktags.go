package vfs

import (
	"context"
	"sort"
	"strings"
)

// TagSelfLink names the link inside a book's tag directory that stands for
// the directory's own tag, when the book carries both it and a descendant.
const TagSelfLink = ".tag"

// bookTagsDir is the tags/ view of one book at the level below prefix. Each
// segment that has assigned tags deeper down is a directory; a segment that
// only matches an assigned tag exactly is a link into /tags.
func (fs *FS) bookTagsDir(parent Node, bookID int64, prefix []string) Node {
	name := "tags"
	if len(prefix) > 0 {
		name = prefix[len(prefix)-1]
	}
	return newDir(name, parent, KindVirtual, func(ctx context.Context, self Node) ([]Node, error) {
		tags, err := fs.lib.BookTags(ctx, bookID)
		if err != nil {
			return nil, err
		}

		own := strings.Join(prefix, "/")
		deeper := make(map[string]bool)
		exact := make(map[string]bool)
		assigned := false
		for _, t := range tags {
			if len(prefix) > 0 && t.Path == own {
				assigned = true
			}
			segments := strings.Split(t.Path, "/")
			if len(segments) <= len(prefix) || !hasPrefix(segments, prefix) {
				continue
			}
			seg := segments[len(prefix)]
			if len(segments) == len(prefix)+1 {
				exact[seg] = true
			} else {
				deeper[seg] = true
			}
		}

		names := make([]string, 0, len(deeper)+len(exact))
		for seg := range deeper {
			names = append(names, seg)
		}
		for seg := range exact {
			if !deeper[seg] {
				names = append(names, seg)
			}
		}
		sort.Strings(names)

		out := make([]Node, 0, len(names)+1)
		if assigned {
			out = append(out, newLink(TagSelfLink, self, TagPath(own)))
		}
		for _, seg := range names {
			full := append(append([]string{}, prefix...), seg)
			if deeper[seg] {
				out = append(out, fs.bookTagsDir(self, bookID, full))
			} else {
				out = append(out, newLink(seg, self, TagPath(strings.Join(full, "/"))))
			}
		}
		return out, nil
	}, nil)
}

func hasPrefix(segments, prefix []string) bool {
	for i, p := range prefix {
		if segments[i] != p {
			return false
		}
	}
	return true
}
