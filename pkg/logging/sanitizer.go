// Package logging holds helpers that keep secrets and oversized LLM payloads out of logs.
package logging

import (
	"regexp"
	"unicode/utf8"
)

const (
	// MaxPayloadLogLength is the maximum length of a prompt or completion to log.
	MaxPayloadLogLength = 500
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// JWT bearer tokens (three base64 segments separated by dots)
	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// api_key=..., apikey=..., key=...
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// Provider keys that show up verbatim in SDK error messages (sk-..., sk-ant-...)
	providerKeyPattern = regexp.MustCompile(`sk-[A-Za-z0-9-_]{16,}`)

	// user:pass@host
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// SanitizeConnectionString removes credentials from a Postgres or Redis URL/DSN.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}

// SanitizeError returns the error text with secrets removed.
// Use this before logging errors from the LLM providers or the database.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeText(err.Error())
}

// SanitizeText redacts passwords, bearer tokens, API keys and URL credentials.
func SanitizeText(s string) string {
	sanitized := passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	sanitized = jwtPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = providerKeyPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}

// SanitizePayload truncates and redacts an LLM prompt or response for debug logging.
func SanitizePayload(payload string) string {
	if payload == "" {
		return ""
	}
	return TruncateString(SanitizeText(payload), MaxPayloadLogLength)
}

// TruncateString truncates a string to maxLen bytes without splitting a rune
// and adds an ellipsis if anything was cut.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
