// Package appid recognises application identifiers embedded in free text.
package appid

import (
	"regexp"
	"strings"
)

// tokenPattern matches a 6 to 12 character alphanumeric run on word boundaries.
// Input is upper-cased before matching.
var tokenPattern = regexp.MustCompile(`\b[A-Z0-9]{6,12}\b`)

// Extract returns the application IDs found in text, upper-cased, in order of appearance.
// Tokens without a digit are skipped so ordinary words are not mistaken for IDs.
// It never returns nil.
func Extract(text string) []string {
	ids := []string{}
	for _, token := range tokenPattern.FindAllString(strings.ToUpper(text), -1) {
		if strings.ContainsAny(token, "0123456789") {
			ids = append(ids, token)
		}
	}
	return ids
}

// First returns the first application ID in text.
func First(text string) (string, bool) {
	ids := Extract(text)
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}
