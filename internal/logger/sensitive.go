package logger

import (
	"regexp"
	"strings"
)

// sensitiveDataPatterns match credentials that must never reach a log line.
var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((password|passwd|token|secret|api[_-]?key)[\s:="]+)([^;,\s"&]{3,})`),
	regexp.MustCompile(`(?i)(://[^:/\s]+:)([^@/\s]+)(@)`),
}

var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "authorization", "api_key", "apikey", "cookie",
}

// RedactSensitiveData replaces credentials in free text with "[REDACTED]".
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for i, pattern := range sensitiveDataPatterns {
		if i == len(sensitiveDataPatterns)-1 {
			input = pattern.ReplaceAllString(input, "${1}[REDACTED]${3}")
			continue
		}
		input = pattern.ReplaceAllString(input, "${1}[REDACTED]")
	}
	return input
}

// RedactFields blanks string values whose key names a secret and scrubs
// credentials out of error messages. The input slice is not modified.
func RedactFields(fields []Field) []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	for i := range out {
		s, ok := out[i].Value.(string)
		if !ok || s == "" {
			continue
		}
		switch {
		case isSensitiveKey(out[i].Key):
			out[i].Value = "[REDACTED]"
		case out[i].Key == errorKey:
			out[i].Value = RedactSensitiveData(s)
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}
