package notation

import (
	"strings"
	"unicode"

	"go-phrase/errs"
)

var closers = map[byte]byte{'(': ')', '[': ']', '<': '>', '{': '}'}

func isOpen(c byte) bool {
	_, ok := closers[c]
	return ok
}

func isClose(c byte) bool {
	return c == ')' || c == ']' || c == '>' || c == '}'
}

// SplitElements splits s at whitespace outside any group. A group opening
// right after a closed element starts a new element, so "[a b][c d]" yields
// two elements.
func SplitElements(s string) ([]string, error) {
	var (
		out   []string
		cur   strings.Builder
		stack []byte
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case len(stack) == 0 && unicode.IsSpace(rune(c)):
			flush()
			continue
		case isOpen(c):
			if len(stack) == 0 && cur.Len() > 0 && i > 0 && s[i-1] != '_' {
				flush()
			}
			stack = append(stack, closers[c])
		case isClose(c):
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return nil, errs.New(errs.InvalidGroup, "unbalanced %q at %d in %q", c, i, s)
			}
			stack = stack[:len(stack)-1]
		}
		cur.WriteByte(c)
	}
	if len(stack) > 0 {
		return nil, errs.New(errs.InvalidGroup, "unclosed group in %q", s)
	}
	flush()
	return out, nil
}

// splitTop splits s at sep outside any group
func splitTop(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case isOpen(c):
			depth++
		case isClose(c):
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// matching returns the index of the closer for the opener at s[0]
func matching(s string) (int, error) {
	var stack []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isOpen(c):
			stack = append(stack, closers[c])
		case isClose(c):
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, errs.New(errs.InvalidGroup, "unbalanced %q in %q", c, s)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, nil
			}
		}
	}
	return 0, errs.New(errs.InvalidGroup, "unclosed group in %q", s)
}
