package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgkeys/internal/auth/scope"
	"github.com/smallbiznis/orgkeys/internal/credential/token"
)

type Service interface {
	// Issue mints a credential for the principal in ctx. The raw token is returned once.
	Issue(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*SecretResponse, error)
	// Verify resolves a bearer credential that must carry required. A denied
	// credential is left untouched.
	Verify(ctx context.Context, raw string, required scope.Scope) (*Decoded, error)
	List(ctx context.Context, orgID snowflake.ID) ([]Response, error)
	Delete(ctx context.Context, orgID snowflake.ID, id string) error
}

type CreateRequest struct {
	Name      string     `json:"name" binding:"required,max=100"`
	Scopes    []string   `json:"scopes" binding:"required,min=1,dive,required"`
	ExpiresAt *time.Time `json:"expires_at"`
	OneTime   bool       `json:"one_time"`
}

// Decoded is the verified view of a credential handed to verifying services.
type Decoded struct {
	CredentialID   snowflake.ID `json:"credential_id"`
	PrincipalID    string       `json:"principal_id"`
	OrganizationID string       `json:"organization_id"`
	Scopes         []string     `json:"scopes"`
	OneTime        bool         `json:"one_time"`
}

type Response struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Suffix     string     `json:"suffix"`
	Scopes     []string   `json:"scopes"`
	OneTime    bool       `json:"one_time"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type SecretResponse struct {
	Response
	Token string `json:"token"`
}

var (
	ErrInvalidCredential = token.ErrInvalidCredential
	ErrExpiredCredential = token.ErrExpiredCredential
	ErrRevokedCredential = errors.New("revoked_credential")

	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("not_found")
)
