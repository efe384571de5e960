package domain

import (
	"strings"
	"unicode"
)

// ParseSearchTokens splits the raw search string into lower-cased tokens.
// Tokens are delimited by '+' or any whitespace character.
func ParseSearchTokens(raw string) []string {
	fields := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		return unicode.IsSpace(r) || r == '+'
	})
	if len(fields) == 0 {
		return nil
	}

	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		tokens = append(tokens, strings.ToLower(field))
	}
	return tokens
}

// MatchesSearchTokens reports whether the record satisfies all search tokens.
// Each token must be contained in its key, title or category.
func (r *Record) MatchesSearchTokens(tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}

	key := strings.ToLower(r.Key)
	title := strings.ToLower(r.Title)
	category := strings.ToLower(string(r.Category))

	for _, token := range tokens {
		if strings.Contains(key, token) ||
			strings.Contains(title, token) ||
			strings.Contains(category, token) {
			continue
		}
		return false
	}
	return true
}
