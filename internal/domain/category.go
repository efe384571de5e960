package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the record type derived from a descriptor key
type Category string

// Known record categories
const (
	CategoryFieldGroup  Category = "acf-field-group"
	CategoryPostType    Category = "acf-post-type"
	CategoryTaxonomy    Category = "acf-taxonomy"
	CategoryOptionsPage Category = "acf-ui-options-page"
)

// ErrUnknownCategory is returned when a key prefix maps to no category
var ErrUnknownCategory = errors.New("unknown record category")

// categoryPrefixes is checked in order; the first matching prefix wins.
var categoryPrefixes = []struct {
	prefix   string
	category Category
}{
	{"group_", CategoryFieldGroup},
	{"post_type_", CategoryPostType},
	{"taxonomy_", CategoryTaxonomy},
	{"ui_options_page_", CategoryOptionsPage},
}

// Categories returns every known category
func Categories() []Category {
	out := make([]Category, 0, len(categoryPrefixes))
	for _, p := range categoryPrefixes {
		out = append(out, p.category)
	}
	return out
}

// ClassifyKey derives the category of a record from its key prefix
func ClassifyKey(key string) (Category, error) {
	for _, p := range categoryPrefixes {
		if strings.HasPrefix(key, p.prefix) {
			return p.category, nil
		}
	}
	return "", fmt.Errorf("%w for key %q", ErrUnknownCategory, key)
}

// ParseCategory validates a user-supplied category name
func ParseCategory(s string) (Category, error) {
	for _, p := range categoryPrefixes {
		if string(p.category) == s {
			return p.category, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCategory, s)
}
