package config

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var strictUsernamePattern = regexp.MustCompile(`^[\p{L}\s]+$`)

// IsValidUsername reports whether candidate, once trimmed, fits the configured
// username length bounds. Length is counted in characters, not bytes.
func (c Config) IsValidUsername(candidate string) bool {
	trimmed := strings.TrimSpace(candidate)
	if !inRange(trimmed, c.MinUsernameLen, c.MaxUsernameLen) {
		return false
	}
	if c.StrictUsernames {
		return strictUsernamePattern.MatchString(trimmed)
	}
	return true
}

// IsValidMessage reports whether the trimmed message body fits the configured bounds.
func (c Config) IsValidMessage(candidate string) bool {
	return inRange(strings.TrimSpace(candidate), c.MinMessageLen, c.MaxMessageLen)
}

func inRange(s string, lo, hi int) bool {
	n := utf8.RuneCountInString(s)
	return lo <= n && n <= hi
}
