package util

import (
	"regexp"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeWhitespace trims and collapses whitespace to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// ContainsAnyCaseInsensitive returns true if text contains any of the needles (case-insensitive).
func ContainsAnyCaseInsensitive(text string, needles []string) bool {
	lt := strings.ToLower(text)
	for _, n := range needles {
		if strings.Contains(lt, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// ExtractUsername pulls the username segment out of a profile URL.
// Works for instagram.com/<user>, tiktok.com/@<user> and bare usernames.
func ExtractUsername(target string) string {
	s := strings.TrimSpace(target)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	if i := strings.Index(s, "/"); i >= 0 {
		rest := strings.Trim(s[i+1:], "/")
		if rest != "" {
			if j := strings.Index(rest, "/"); j >= 0 {
				rest = rest[:j]
			}
			if k := strings.Index(rest, "?"); k >= 0 {
				rest = rest[:k]
			}
			s = rest
		}
	}
	return strings.TrimPrefix(s, "@")
}
