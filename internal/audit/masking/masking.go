// Package masking scrubs audit metadata before it is persisted.
package masking

import "strings"

const redacted = "[redacted]"

var sensitiveKeys = []string{"token", "secret", "authorization", "password", "hash"}

// Scrub returns a copy of input with credential-bearing values redacted.
// Keys naming a secret are redacted outright; any string that looks like a
// signed credential is redacted wherever it appears.
func Scrub(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		if isSensitiveKey(k) {
			out[k] = redacted
			continue
		}
		out[k] = scrubValue(value)
	}
	return out
}

func scrubValue(value any) any {
	switch cast := value.(type) {
	case string:
		if LooksLikeCredential(cast) {
			return redacted
		}
		return cast
	case map[string]any:
		return Scrub(cast)
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, scrubValue(item))
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if lower == "token_suffix" {
		return false
	}
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// LooksLikeCredential reports whether value has the three-segment shape of a JWS.
func LooksLikeCredential(value string) bool {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "Bearer ")
	return strings.HasPrefix(value, "eyJ") && strings.Count(value, ".") == 2
}
