// Package token issues and parses signed API credentials.
//
// A credential is an HS256 JWT whose payload is
//
//	{sub, iat, exp?, orgId, seed, scopes, oneTime}
//
// Verifying services outside this repository decode the same shape, so field
// names must not change. Only the SHA-256 digest of a credential is persisted.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/smallbiznis/orgkeys/internal/auth/scope"
	"github.com/smallbiznis/orgkeys/internal/clock"
)

const suffixLength = 4

var (
	// ErrConfiguration means the signing secret is missing. It is not retryable.
	ErrConfiguration = errors.New("configuration_error")

	ErrInvalidCredential = errors.New("invalid_credential")
	ErrExpiredCredential = errors.New("expired_credential")

	ErrInvalidPrincipal    = errors.New("invalid_principal")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidExpiry       = errors.New("invalid_expires_at")
)

// Config carries the signing material. It is read once at startup.
type Config struct {
	Secret []byte
}

// Claims is the credential payload.
type Claims struct {
	OrgID   string   `json:"orgId"`
	Seed    string   `json:"seed"`
	Scopes  []string `json:"scopes"`
	OneTime bool     `json:"oneTime"`
	jwt.RegisteredClaims
}

type IssueRequest struct {
	PrincipalID    string
	OrganizationID string
	Scopes         []string
	ExpiresAt      *time.Time
	OneTime        bool
}

type Issued struct {
	Token string
	Hash  string
}

type Issuer struct {
	secret []byte
	clock  clock.Clock
}

func NewIssuer(cfg Config, clk clock.Clock) *Issuer {
	if clk == nil {
		clk = clock.New()
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &Issuer{secret: secret, clock: clk}
}

// Issue signs a new credential. It has no side effects.
func (i *Issuer) Issue(req IssueRequest) (Issued, error) {
	if len(i.secret) == 0 {
		return Issued{}, ErrConfiguration
	}

	principalID := strings.TrimSpace(req.PrincipalID)
	if principalID == "" {
		return Issued{}, ErrInvalidPrincipal
	}
	orgID := strings.TrimSpace(req.OrganizationID)
	if orgID == "" {
		return Issued{}, ErrInvalidOrganization
	}
	if err := scope.Validate(req.Scopes); err != nil {
		return Issued{}, err
	}

	now := i.clock.Now()
	claims := Claims{
		OrgID:   orgID,
		Seed:    uuid.NewString(),
		Scopes:  scope.Normalize(req.Scopes),
		OneTime: req.OneTime,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  principalID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if req.ExpiresAt != nil {
		// exp is encoded in whole seconds; check the value that will be signed.
		exp := req.ExpiresAt.Truncate(time.Second)
		if !exp.After(now) {
			return Issued{}, ErrInvalidExpiry
		}
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Issued{}, err
	}

	return Issued{Token: signed, Hash: Hash(signed)}, nil
}

// Parse checks the signature, then the exp claim against the issuer clock.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	if len(i.secret) == 0 {
		return nil, ErrConfiguration
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidCredential
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidCredential
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.OrgID) == "" {
		return nil, ErrInvalidCredential
	}

	// Expiry is only meaningful once the signature is known to be good.
	if claims.ExpiresAt != nil && !i.clock.Now().Before(claims.ExpiresAt.Time) {
		return nil, ErrExpiredCredential
	}

	return claims, nil
}

// Hash returns the hex SHA-256 digest stored in place of the credential.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Suffix returns the trailing characters shown to users to tell credentials apart.
func Suffix(raw string) string {
	if len(raw) <= suffixLength {
		return raw
	}
	return raw[len(raw)-suffixLength:]
}
