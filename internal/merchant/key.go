// Package merchant turns noisy transaction descriptions into canonical
// merchant identities.
package merchant

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// UnknownKey is the key of a description with nothing left after cleanup.
const UnknownKey = "UNKNOWN"

// MaxKeyLength caps merchant keys, in runes.
const MaxKeyLength = 32

var (
	leadingRefPattern   = regexp.MustCompile(`^(?:(?:#|REF\s*|NO\.?\s*)?\d[\d\-/:.]*(?:\s+|$))+`)
	trailingRefPattern  = regexp.MustCompile(`(?:\s+(?:#|STORE\s*|NO\.?\s*)?\d[\d\-/:.]*)+$`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
	trailingPunctuation = " \t-_.,:;#/"
)

// ExtractKey reduces a raw description to the merchant key used for clustering.
func ExtractKey(description string) string {
	key := strings.ToUpper(strings.TrimSpace(description))

	if idx := strings.Index(key, "*"); idx >= 0 {
		key = key[:idx]
	}

	key = whitespacePattern.ReplaceAllString(key, " ")
	key = leadingRefPattern.ReplaceAllString(key, "")
	key = trailingRefPattern.ReplaceAllString(key, "")
	key = strings.Trim(key, trailingPunctuation)

	key = capRunes(key, MaxKeyLength)
	key = strings.Trim(key, trailingPunctuation)

	if key == "" {
		return UnknownKey
	}
	return key
}

func capRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
