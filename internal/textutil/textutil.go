// Package textutil implements the line-oriented text filters used as file
// contents and as pipeline stages: head, tail, wc, sort, uniq and grep.
//
// A text is a sequence of lines separated by "\n". A single trailing newline
// terminates the last line rather than starting an empty one.
package textutil

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/starford/shelf/internal/apperr"
)

// Lines splits text into lines. The empty text has no lines.
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// Head returns the first min(n, len(lines)) lines.
func Head(text string, n int) string {
	lines := Lines(text)
	if n <= 0 {
		return ""
	}
	if n > len(lines) {
		n = len(lines)
	}
	return strings.Join(lines[:n], "\n")
}

// Tail returns the last min(n, len(lines)) lines.
func Tail(text string, n int) string {
	lines := Lines(text)
	if n <= 0 {
		return ""
	}
	if n > len(lines) {
		n = len(lines)
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// Counts holds the result of WC.
type Counts struct {
	Lines int
	Words int
	Chars int
}

// Count computes line, word and character counts. The line count is the
// number of newlines, plus one for a non-empty unterminated last line.
func Count(text string) Counts {
	lines := strings.Count(text, "\n")
	if text != "" && !strings.HasSuffix(text, "\n") {
		lines++
	}
	return Counts{
		Lines: lines,
		Words: len(strings.Fields(text)),
		Chars: utf8.RuneCountInString(text),
	}
}

// WC renders the counts selected by the flags. With no flag set all three
// are printed, space padded; a single selected count is printed bare.
func WC(text string, linesOnly, wordsOnly, charsOnly bool) string {
	c := Count(text)
	if !linesOnly && !wordsOnly && !charsOnly {
		return fmt.Sprintf("%7d %7d %7d", c.Lines, c.Words, c.Chars)
	}
	var fields []int
	if linesOnly {
		fields = append(fields, c.Lines)
	}
	if wordsOnly {
		fields = append(fields, c.Words)
	}
	if charsOnly {
		fields = append(fields, c.Chars)
	}
	if len(fields) == 1 {
		return fmt.Sprintf("%d", fields[0])
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%7d", f)
	}
	return strings.Join(parts, " ")
}

// Sort orders lines by byte value, which for UTF-8 is code point order, so
// uppercase sorts before lowercase. Equal lines keep their relative order
// and a trailing newline in the input is kept.
func Sort(text string, reverse bool) string {
	trailing := strings.HasSuffix(text, "\n")
	lines := Lines(text)
	sorted := make([]string, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		if reverse {
			return sorted[i] > sorted[j]
		}
		return sorted[i] < sorted[j]
	})
	out := strings.Join(sorted, "\n")
	if trailing {
		out += "\n"
	}
	return out
}

// Uniq collapses runs of consecutive equal lines. With count set each line
// is prefixed by the length of its run.
func Uniq(text string, count bool) string {
	lines := Lines(text)
	var out []string
	for i := 0; i < len(lines); {
		j := i + 1
		for j < len(lines) && lines[j] == lines[i] {
			j++
		}
		if count {
			out = append(out, fmt.Sprintf("%7d %s", j-i, lines[i]))
		} else {
			out = append(out, lines[i])
		}
		i = j
	}
	return strings.Join(out, "\n")
}

// CompilePattern compiles a grep pattern. Malformed patterns report
// apperr.ErrBadPattern.
func CompilePattern(pattern string, ignoreCase bool) (*regexp.Regexp, error) {
	if ignoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrBadPattern, err)
	}
	return re, nil
}

// Match returns the lines of text that match re, optionally prefixed with
// their 1-based line number.
func Match(text string, re *regexp.Regexp, lineNumbers bool) []string {
	var out []string
	for i, line := range Lines(text) {
		if !re.MatchString(line) {
			continue
		}
		if lineNumbers {
			line = fmt.Sprintf("%d:%s", i+1, line)
		}
		out = append(out, line)
	}
	return out
}

// Grep returns the matching lines of text joined by newlines.
func Grep(text, pattern string, ignoreCase, lineNumbers bool) (string, error) {
	re, err := CompilePattern(pattern, ignoreCase)
	if err != nil {
		return "", err
	}
	return strings.Join(Match(text, re, lineNumbers), "\n"), nil
}
