package vfs

import (
	"strconv"
	"strings"
)

// PersonSlug derives a directory name from a person's name. "Last, First"
// becomes "last-first"; a name of two or more words is reordered so the last
// word leads ("Ursula K Le Guin" becomes "guin-ursula-k-le").
func PersonSlug(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if last, first, ok := strings.Cut(name, ","); ok {
		return Slug(last + " " + first)
	}
	words := strings.Fields(name)
	if len(words) >= 2 {
		words = append([]string{words[len(words)-1]}, words[:len(words)-1]...)
	}
	return Slug(strings.Join(words, " "))
}

// Slug lowercases s, turns whitespace into hyphens and drops everything
// outside [a-z0-9-], collapsing runs of hyphens.
func Slug(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			hyphen = false
		case r == '-' || r == ' ' || r == '\t' || r == '_':
			if !hyphen && b.Len() > 0 {
				b.WriteByte('-')
				hyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

type named struct {
	id   int64
	name string
}

// assignSlugs gives every entity a unique slug. Entities must be ordered by
// id: the first to claim a slug keeps it, later ones get "-<id>" appended.
// An empty slug becomes the id.
func assignSlugs(entities []named, slugFn func(string) string) []string {
	used := make(map[string]bool, len(entities))
	out := make([]string, len(entities))
	for i, e := range entities {
		id := strconv.FormatInt(e.id, 10)
		s := slugFn(e.name)
		if s == "" {
			s = id
		}
		for used[s] {
			s += "-" + id
		}
		used[s] = true
		out[i] = s
	}
	return out
}
