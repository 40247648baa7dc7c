// Package query sanitizes raw user input before it reaches the classifier or the vector store.
package query

import (
	"strings"
	"unicode"
)

// DefaultMaxLength is the rune limit applied by Preprocess.
const DefaultMaxLength = 500

// Preprocess cleans raw user text with the default length limit.
func Preprocess(raw string) string {
	return PreprocessWithLimit(raw, DefaultMaxLength)
}

// PreprocessWithLimit drops characters outside the allow-list (letters, digits,
// marks, underscore, whitespace and -/.#+), collapses whitespace runs to a single
// space, trims, and cuts the result to maxLength runes. maxLength <= 0 disables the cut.
// The output is a fixed point: PreprocessWithLimit(PreprocessWithLimit(x, n), n) equals PreprocessWithLimit(x, n).
func PreprocessWithLimit(raw string, maxLength int) string {
	if raw == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(raw))
	wasSpace := true // drops leading whitespace
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		case allowed(r):
			b.WriteRune(r)
			wasSpace = false
		}
	}
	out := strings.TrimRight(b.String(), " ")
	if maxLength > 0 {
		runes := []rune(out)
		if len(runes) > maxLength {
			out = strings.TrimRight(string(runes[:maxLength]), " ")
		}
	}
	return out
}

func allowed(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
		return true
	}
	switch r {
	case '_', '-', '/', '.', '#', '+':
		return true
	}
	return false
}
