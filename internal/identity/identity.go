// Package identity carries the authenticated principal and the active
// organization through a request context. The principal is supplied by the
// edge identity provider and is trusted as-is.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
)

const (
	HeaderPrincipalID    = "X-Principal-ID"
	HeaderPrincipalEmail = "X-Principal-Email"
)

// EmailRule is the validator rule applied to every email address, both at
// request binding and in the services.
const EmailRule = "required,email,max=320"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidOrg      = errors.New("invalid_organization")
)

var validate = validator.New()

type Principal struct {
	ID    snowflake.ID
	Email string
}

type principalKey struct{}
type orgKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal, or ErrUnauthenticated when none is set.
func PrincipalFromContext(ctx context.Context) (Principal, error) {
	if ctx == nil {
		return Principal{}, ErrUnauthenticated
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.ID == 0 {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}

// FromHeaders reads the principal forwarded by the identity provider.
func FromHeaders(h http.Header) (Principal, error) {
	rawID := strings.TrimSpace(h.Get(HeaderPrincipalID))
	if rawID == "" {
		return Principal{}, ErrUnauthenticated
	}
	id, err := snowflake.ParseString(rawID)
	if err != nil || id <= 0 {
		return Principal{}, ErrUnauthenticated
	}

	email := NormalizeEmail(h.Get(HeaderPrincipalEmail))
	if email != "" && !ValidEmail(email) {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{ID: id, Email: email}, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email is a bare address.
func ValidEmail(email string) bool {
	return validate.Var(email, EmailRule) == nil
}

func WithOrgID(ctx context.Context, orgID snowflake.ID) context.Context {
	return context.WithValue(ctx, orgKey{}, orgID)
}

func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(orgKey{}).(snowflake.ID)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}

// ParseOrgID parses a decimal organization ID from a path parameter.
func ParseOrgID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, ErrInvalidOrg
	}
	return id, nil
}
