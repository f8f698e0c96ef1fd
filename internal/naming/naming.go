// Package naming derives table and attribute names from Go identifiers.
package naming

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Snake converts s to snake_case. Punctuation such as pointer stars or
// generic brackets collapses into a single underscore.
func Snake(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)
	lastUnderscore := false

	underscore := func() {
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (nextLower && unicode.IsUpper(prev)) {
					underscore()
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		case unicode.IsLower(r), unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			underscore()
		}
	}
	return strings.Trim(b.String(), "_")
}

// Table returns the conventional table name for an entity name:
// snake_case, pluralized on the last word.
func Table(entity string) string {
	snake := Snake(entity)
	if snake == "" {
		return ""
	}
	idx := strings.LastIndexByte(snake, '_')
	return snake[:idx+1] + inflection.Plural(snake[idx+1:])
}

// Plural pluralizes a display name such as an entity name.
func Plural(name string) string {
	return inflection.Plural(name)
}
