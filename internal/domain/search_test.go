package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSearchTokens(t *testing.T) {
	assert.Nil(t, ParseSearchTokens(""))
	assert.Nil(t, ParseSearchTokens("  + "))
	assert.Equal(t, []string{"hero", "front"}, ParseSearchTokens("Hero+FRONT"))
	assert.Equal(t, []string{"a", "b", "c"}, ParseSearchTokens(" a  b+c "))
}

func TestRecord_MatchesSearchTokens(t *testing.T) {
	rec := &Record{Key: "group_hero", Title: "Front Page Hero", Category: CategoryFieldGroup}

	tests := []struct {
		search string
		want   bool
	}{
		{"", true},
		{"hero", true},
		{"front+hero", true},
		{"field-group", true},
		{"hero+taxonomy", false},
		{"book", false},
	}

	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			assert.Equal(t, tt.want, rec.MatchesSearchTokens(ParseSearchTokens(tt.search)))
		})
	}
}
