package roster

import (
	"strings"
	"unicode"
)

// ParseRoster splits free text into candidate email entries. Entries may be separated by
// newlines, commas, semicolons or any whitespace.
func ParseRoster(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}

// MergeRoster concatenates free-text and group-sourced entries in order. Repeats are left
// in place so the validator can report them.
func MergeRoster(lists ...[]string) []string {
	size := 0
	for _, list := range lists {
		size += len(list)
	}

	merged := make([]string, 0, size)
	for _, list := range lists {
		merged = append(merged, list...)
	}
	return merged
}
