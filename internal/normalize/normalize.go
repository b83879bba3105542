// Package normalize canonicalizes free-text record fields for comparison.
// All functions are pure; an absent value normalizes to the empty string,
// never an error.
package normalize

import (
	"regexp"
	"strings"
)

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// adminWords lists administrative-unit words stripped from township names.
// Covers both English and romanized Burmese unit suffixes seen in the data.
var adminWords = []string{
	"township", "tsp", "city", "region", "state", "district", "division",
	"ward", "quarter", "myo", "myothit",
}

// Text lowercases, trims, and collapses internal whitespace.
func Text(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	return multiSpaceRe.ReplaceAllString(s, " ")
}

// Phone strips everything but digits.
func Phone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Township normalizes a township/region name: lowercased, trimmed, and
// with administrative-unit words removed so "Hlaing Township" and
// "Hlaing" compare equal.
func Township(s string) string {
	s = Text(s)
	if s == "" {
		return ""
	}

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if isAdminWord(strings.Trim(w, ".,()")) {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func isAdminWord(w string) bool {
	for _, a := range adminWords {
		if w == a {
			return true
		}
	}
	return false
}
