// Package validate implements the input-shape checks spec.md §4.3
// requires before any user-supplied string reaches a command handler
// or the database: length caps, snowflake/URL shape, a dangerous-
// pattern denylist, and chat-platform-safe display sanitization.
// Grounded on the original bot's utils/security.py InputValidator.
package validate

import (
	"regexp"
	"strings"
)

// MaxLengths mirrors the original's per-type length caps.
var MaxLengths = map[string]int{
	"username":      100,
	"reason":        500,
	"message":       2000,
	"url":           2000,
	"command_input": 500,
	"search_query":  200,
	"default":       1000,
}

// dangerousPatterns rejects the same class of payloads the original
// denylist does: markup injection, script-execution hooks, and SQL
// control-keyword injection attempts.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script.*?>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)exec\s*\(`),
	regexp.MustCompile(`__import__`),
	regexp.MustCompile(`(?i);\s*drop\s+`),
	regexp.MustCompile(`(?i);\s*delete\s+`),
	regexp.MustCompile(`(?i);\s*update\s+`),
	regexp.MustCompile(`(?i);\s*insert\s+`),
	regexp.MustCompile(`(?i)union\s+select`),
	regexp.MustCompile(`'--`),
	regexp.MustCompile(`(?i)'\s*or\s*'`),
}

var snowflakePattern = regexp.MustCompile(`^\d{17,20}$`)
var urlPattern = regexp.MustCompile(`^https?://[^\s<>"{}|\\^` + "`" + `\[\]]+$`)

var dangerousURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)data:`),
	regexp.MustCompile(`(?i)vbscript:`),
}

func maxLengthFor(inputType string) int {
	if n, ok := MaxLengths[inputType]; ok {
		return n
	}
	return MaxLengths["default"]
}

func hasDangerousPattern(value string) bool {
	for _, p := range dangerousPatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// ValidateString checks value against inputType's length cap and the
// dangerous-pattern denylist, returning (ok, cleaned, message).
func ValidateString(value, inputType string, allowEmpty bool) (bool, string, string) {
	cleaned := strings.TrimSpace(value)

	if !allowEmpty && cleaned == "" {
		return false, cleaned, "value cannot be empty"
	}

	if max := maxLengthFor(inputType); len(cleaned) > max {
		return false, cleaned, "value exceeds the maximum length"
	}

	if hasDangerousPattern(cleaned) {
		return false, cleaned, "potentially dangerous input detected"
	}

	return true, cleaned, ""
}

// ValidateInteger checks value against the optional [min, max]
// bounds. min/max use a "set" flag since 0 is a valid bound.
func ValidateInteger(value int, hasMin bool, min int, hasMax bool, max int) (bool, int, string) {
	if hasMin && value < min {
		return false, value, "value is below the minimum"
	}
	if hasMax && value > max {
		return false, value, "value is above the maximum"
	}
	return true, value, ""
}

// ValidateSnowflake checks that value looks like a chat-platform
// snowflake ID: 17-20 ASCII digits.
func ValidateSnowflake(value string) (bool, string, string) {
	if !snowflakePattern.MatchString(value) {
		return false, value, "invalid snowflake id"
	}
	return true, value, ""
}

// ValidateURL checks value is an http(s) URL and doesn't smuggle a
// javascript:/data:/vbscript: payload.
func ValidateURL(value string) (bool, string, string) {
	cleaned := strings.TrimSpace(value)

	if len(cleaned) > MaxLengths["url"] {
		return false, cleaned, "url too long"
	}
	if !urlPattern.MatchString(cleaned) {
		return false, cleaned, "invalid url"
	}
	for _, p := range dangerousURLPatterns {
		if p.MatchString(cleaned) {
			return false, cleaned, "potentially dangerous url"
		}
	}
	return true, cleaned, ""
}

var discordEscapeChars = []string{"*", "_", "`", "~", "|", ">"}
var zeroWidthChars = []string{"\xe2\x80\x8b", "\xe2\x80\x8c", "\xe2\x80\x8d", "\xef\xbb\xbf"}

// SanitizeForDisplay escapes chat-platform formatting characters and
// strips zero-width code points so untrusted text can't alter message
// rendering.
func SanitizeForDisplay(value string) string {
	out := value
	for _, c := range discordEscapeChars {
		out = strings.ReplaceAll(out, c, "\\"+c)
	}
	for _, c := range zeroWidthChars {
		out = strings.ReplaceAll(out, c, "")
	}
	return out
}
