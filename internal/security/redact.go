package security

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxLoggedValue is the longest string value kept verbatim in logs.
const MaxLoggedValue = 200

var sensitiveSubstrings = []string{
	"token",
	"password",
	"authorization",
	"apikey",
	"api_key",
	"access_key",
	"private_key",
	"credential",
	"secret",
	"passwd",
	"cookie",
	"session",
	"jwt",
	"bearer",
	"passphrase",
}

// RedactArguments returns a copy of arguments safe for logs: sensitive keys are
// masked and long strings (code, paper text) are shortened.
func RedactArguments(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	redacted := make(map[string]any, len(values))
	for key, value := range values {
		if isSensitiveKey(key) {
			redacted[key] = "***"
			continue
		}
		if s, ok := value.(string); ok {
			redacted[key] = Shorten(s, MaxLoggedValue)
			continue
		}
		redacted[key] = value
	}
	return redacted
}

// Shorten cuts s to at most limit runes and notes how much was dropped.
func Shorten(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return fmt.Sprintf("%s...(%d more chars)", string(runes[:limit]), len(runes)-limit)
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	for _, part := range sensitiveSubstrings {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
