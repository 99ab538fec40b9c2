package common

import (
	"fmt"
	"regexp"
	"strings"
)

// CompileWordPattern builds a case-insensitive regex that matches any of the
// given words or phrases on word boundaries. Inner whitespace in a phrase
// matches any run of whitespace.
func CompileWordPattern(words []string) (*regexp.Regexp, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("at least one word is required")
	}

	alternatives := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		parts := strings.Fields(w)
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		alternatives = append(alternatives, strings.Join(parts, `\s+`))
	}
	if len(alternatives) == 0 {
		return nil, fmt.Errorf("at least one non-blank word is required")
	}

	return regexp.Compile(`(?i)\b(?:` + strings.Join(alternatives, "|") + `)\b`)
}
