package dedup

import (
	"strings"
	"time"
	"unicode"
)

// streetAbbrevs maps long street-type words to their canonical short form so
// "The Embarcadero Street" and "The Embarcadero St." normalize identically.
var streetAbbrevs = map[string]string{
	"street":    "st",
	"avenue":    "ave",
	"boulevard": "blvd",
	"drive":     "dr",
	"road":      "rd",
	"lane":      "ln",
	"court":     "ct",
	"place":     "pl",
	"square":    "sq",
	"parkway":   "pkwy",
	"highway":   "hwy",
	"suite":     "ste",
	"north":     "n",
	"south":     "s",
	"east":      "e",
	"west":      "w",
}

// normalizeTitle lower-cases, strips punctuation, and collapses whitespace.
func normalizeTitle(title string) string {
	return strings.Join(tokens(title), " ")
}

// normalizeVenue canonicalizes a venue or address string: lower-cased,
// punctuation stripped, street types abbreviated, then alias-mapped.
func normalizeVenue(s string, aliases map[string]string) string {
	toks := tokens(s)
	for i, tok := range toks {
		if abbrev, ok := streetAbbrevs[tok]; ok {
			toks[i] = abbrev
		}
	}
	norm := strings.Join(toks, " ")
	if canonical, ok := aliases[norm]; ok {
		return canonical
	}
	return norm
}

// streetNumber returns the first run of digits in an address, or "".
// A shared street number lets the low similarity band merge.
func streetNumber(address string) string {
	for _, tok := range tokens(address) {
		digits := true
		for _, r := range tok {
			if !unicode.IsDigit(r) {
				digits = false
				break
			}
		}
		if digits && tok != "" {
			return tok
		}
	}
	return ""
}

// tokens lower-cases s and splits it on anything that is not a letter or
// digit. Empty input yields an empty slice, never a panic.
func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// dayBucket truncates a timestamp to its calendar day in UTC. Zero times map
// to the zero bucket and only match other zero times.
func dayBucket(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
