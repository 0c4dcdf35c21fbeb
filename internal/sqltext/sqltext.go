// Package sqltext lexes statement text just enough to count the ?
// parameter markers. database/sql exposes no parameter metadata, so
// the count taken from the text stands in for the statement's declared
// parameter count during validation.
package sqltext

import (
	"fmt"
	"strings"
)

// CountPlaceholders returns the number of ? ordinal parameter markers
// in the statement text. Markers inside string literals, quoted
// identifiers and comments are not counted. An unterminated literal or
// block comment is an error.
func CountPlaceholders(input string) (count int, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot scan statement text: %s", err)
		}
	}()

	i := 0
	for i < len(input) {
		switch c := input[i]; {
		case c == '\'' || c == '"' || c == '`':
			i, err = skipQuoted(input, i)
			if err != nil {
				return 0, err
			}
		case c == '-' && strings.HasPrefix(input[i:], "--"):
			i = skipLineComment(input, i)
		case c == '/' && strings.HasPrefix(input[i:], "/*"):
			i, err = skipBlockComment(input, i)
			if err != nil {
				return 0, err
			}
		case c == '?':
			count++
			i++
		default:
			i++
		}
	}
	return count, nil
}

// skipQuoted jumps over a quoted section starting at i. Doubled up
// quotes are escapes.
func skipQuoted(input string, i int) (int, error) {
	quote := input[i]
	i++
	for i < len(input) {
		if input[i] != quote {
			i++
			continue
		}
		if i+1 < len(input) && input[i+1] == quote {
			i += 2
			continue
		}
		return i + 1, nil
	}
	return 0, fmt.Errorf("missing closing %q in quoted section", string(quote))
}

func skipLineComment(input string, i int) int {
	if end := strings.IndexByte(input[i:], '\n'); end != -1 {
		return i + end + 1
	}
	return len(input)
}

func skipBlockComment(input string, i int) (int, error) {
	if end := strings.Index(input[i+2:], "*/"); end != -1 {
		return i + 2 + end + 2, nil
	}
	return 0, fmt.Errorf("missing */ at the end of block comment")
}
