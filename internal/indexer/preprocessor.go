package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted text before chunking: CRLF becomes LF, control
// characters are dropped, runs of horizontal whitespace collapse to one space and
// blank-line runs collapse to a single blank line. Line structure is otherwise kept.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	newlines := 0
	for _, r := range text {
		switch {
		case r == '\n':
			newlines++
			wasSpace = false
			if newlines <= 2 {
				b.WriteRune('\n')
			}
		case unicode.IsSpace(r):
			if !wasSpace && newlines == 0 {
				b.WriteRune(' ')
			}
			wasSpace = true
		case unicode.IsControl(r) || r == unicode.ReplacementChar:
		default:
			b.WriteRune(r)
			wasSpace = false
			newlines = 0
		}
	}
	lines := strings.Split(b.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
