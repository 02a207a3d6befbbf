package origin

import (
	"regexp"
	"strings"
)

// CompilePatterns turns allowed origins into anchored regex patterns.
// A '*' matches any run of characters; everything else is literal.
// Blank entries are skipped.
func CompilePatterns(allowed []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(allowed))
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		pattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(entry), `\*`, `.*`) + "$"
		if re, err := regexp.Compile(pattern); err == nil {
			patterns = append(patterns, re)
		}
	}
	return patterns
}

// IsAllowed reports whether origin matches one of the patterns. Origins are
// compared without a trailing slash, so "https://a.test/" equals "https://a.test".
func IsAllowed(origin string, patterns []*regexp.Regexp) bool {
	origin = strings.TrimSuffix(origin, "/")
	for _, pattern := range patterns {
		if pattern.MatchString(origin) {
			return true
		}
	}
	return false
}
