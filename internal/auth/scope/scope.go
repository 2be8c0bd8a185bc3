// Package scope enumerates the backend services an API credential may call.
package scope

import (
	"errors"
	"slices"
	"strings"
)

type Scope string

var (
	ErrInvalidScope = errors.New("invalid_scope")
	ErrEmptyScopes  = errors.New("invalid_scopes")
)

const (
	ScopeServiceOCR           Scope = "SERVICE_OCR"
	ScopeServiceTranscription Scope = "SERVICE_TRANSCRIPTION"
	ScopeServiceTranslation   Scope = "SERVICE_TRANSLATION"
	ScopeServiceFiles         Scope = "SERVICE_FILES"
)

var allScopes = []Scope{
	ScopeServiceOCR,
	ScopeServiceTranscription,
	ScopeServiceTranslation,
	ScopeServiceFiles,
}

var validScopes = func() map[string]struct{} {
	lookup := make(map[string]struct{}, len(allScopes))
	for _, scope := range allScopes {
		lookup[string(scope)] = struct{}{}
	}
	return lookup
}()

func All() []string {
	values := make([]string, len(allScopes))
	for i, scope := range allScopes {
		values[i] = string(scope)
	}
	return values
}

// Parse maps a path or header value such as "ocr" or "service_ocr" to a Scope.
func Parse(raw string) (Scope, error) {
	value := normalize(raw)
	if value == "" {
		return "", ErrInvalidScope
	}
	if !strings.HasPrefix(value, "SERVICE_") {
		value = "SERVICE_" + value
	}
	if !IsValid(value) {
		return "", ErrInvalidScope
	}
	return Scope(value), nil
}

// Has reports whether required is present in scopes. Matching is exact.
func Has(scopes []string, required Scope) bool {
	want := normalize(string(required))
	if want == "" {
		return false
	}
	return slices.ContainsFunc(scopes, func(s string) bool {
		return normalize(s) == want
	})
}

// Validate rejects empty sets and values outside the enumeration.
func Validate(scopes []string) error {
	normalized := Normalize(scopes)
	if len(normalized) == 0 {
		return ErrEmptyScopes
	}
	for _, scope := range normalized {
		if !IsValid(scope) {
			return ErrInvalidScope
		}
	}
	return nil
}

// Normalize upper-cases, trims and de-duplicates while keeping order.
func Normalize(scopes []string) []string {
	if len(scopes) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(scopes))
	normalized := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		value := normalize(scope)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		normalized = append(normalized, value)
	}
	return normalized
}

func IsValid(scope string) bool {
	_, ok := validScopes[normalize(scope)]
	return ok
}

func normalize(value string) string {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	return strings.ReplaceAll(normalized, "-", "_")
}
