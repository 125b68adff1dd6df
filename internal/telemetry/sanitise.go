package telemetry

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	redacted       = "[REDACTED]"
	minTokenLength = 20
	maxStringValue = 200
)

var (
	secretPattern = regexp.MustCompile(`(?i)(token|secret|password|passwd|pwd|auth|authorization)[\s:=]+["']?([^\s"']+)`)
	uuidPattern   = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

	sensitiveKeys = []string{"password", "passwd", "pwd", "token", "secret", "auth", "key"}
)

// SanitiseArguments renders args as JSON with sensitive values redacted and long
// strings (such as inline HTML) truncated.
func SanitiseArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(sanitiseMap(args))
	if err != nil {
		return `{"error": "failed to serialise arguments"}`
	}
	return string(data)
}

// SanitiseFields returns a copy of args with sensitive values redacted, for use as
// structured log fields.
func SanitiseFields(args map[string]any) map[string]any {
	return sanitiseMap(args)
}

func sanitiseMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for key, value := range m {
		if isSensitiveKey(key) {
			out[key] = redacted
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			out[key] = sanitiseMap(v)
		case string:
			out[key] = sanitiseString(v)
		default:
			out[key] = value
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

func sanitiseString(s string) string {
	if secretPattern.MatchString(s) {
		s = secretPattern.ReplaceAllString(s, "$1="+redacted)
	}
	if len(s) > minTokenLength && isTokenLike(s) && !uuidPattern.MatchString(s) {
		return s[:4] + "..." + redacted
	}
	return TruncateString(s, maxStringValue)
}

// isTokenLike reports whether s is a single run of token characters. Paths contain
// separators and are left alone.
func isTokenLike(s string) bool {
	for _, c := range s {
		ok := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_'
		if !ok {
			return false
		}
	}
	return true
}

// TruncateString truncates s to maxLen bytes with an ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
