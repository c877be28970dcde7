package shell

import (
	"fmt"
	"strings"

	"github.com/starford/shelf/internal/apperr"
)

var errUnterminatedQuote = fmt.Errorf("%w: unterminated quote", apperr.ErrInvalidArgument)

// scan calls fn for every byte of line outside quotes and escapes. fn
// returns false to stop the scan.
func scan(line string, fn func(i int, c byte) bool) error {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote == '\'':
			if c == '\'' {
				quote = 0
			}
		case quote == '"':
			if c == '\\' && i+1 < len(line) {
				i++
			} else if c == '"' {
				quote = 0
			}
		case c == '\\':
			i++
		case c == '\'' || c == '"':
			quote = c
		default:
			if !fn(i, c) {
				return nil
			}
		}
	}
	if quote != 0 {
		return errUnterminatedQuote
	}
	return nil
}

// splitPipeline splits line on unquoted "|".
func splitPipeline(line string) ([]string, error) {
	var stages []string
	start := 0
	err := scan(line, func(i int, c byte) bool {
		if c == '|' {
			stages = append(stages, strings.TrimSpace(line[start:i]))
			start = i + 1
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return append(stages, strings.TrimSpace(line[start:])), nil
}

// splitRedirect splits line at the first unquoted ">". The target must be a
// single word.
func splitRedirect(line string) (command, target string, ok bool, err error) {
	at := -1
	err = scan(line, func(i int, c byte) bool {
		if c == '>' {
			at = i
			return false
		}
		return true
	})
	if err != nil || at < 0 {
		return line, "", false, err
	}
	words, err := tokenize(line[at+1:])
	if err != nil {
		return "", "", false, err
	}
	switch len(words) {
	case 0:
		return "", "", false, fmt.Errorf("%w: missing redirect target", apperr.ErrInvalidArgument)
	case 1:
		return strings.TrimSpace(line[:at]), words[0], true, nil
	}
	return "", "", false, fmt.Errorf("%w: ambiguous redirect", apperr.ErrInvalidArgument)
}

// tokenize splits a command into words. Single quotes are literal, double
// quotes allow backslash escapes, and a backslash outside quotes escapes the
// next character.
func tokenize(s string) ([]string, error) {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		quote   byte
		escaped bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case quote == '\'':
			if c == '\'' {
				quote = 0
			} else {
				cur.WriteByte(c)
			}
		case quote == '"':
			switch {
			case c == '"':
				quote = 0
			case c == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\'):
				i++
				cur.WriteByte(s[i])
			default:
				cur.WriteByte(c)
			}
		case c == '\\':
			escaped, inWord = true, true
		case c == '\'' || c == '"':
			quote, inWord = c, true
		case c == ' ' || c == '\t' || c == '\n':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteByte(c)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, errUnterminatedQuote
	}
	if escaped {
		return nil, fmt.Errorf("%w: trailing backslash", apperr.ErrInvalidArgument)
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}
