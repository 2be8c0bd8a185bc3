package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*Response, error)
	ListForOrganization(ctx context.Context, orgID snowflake.ID) ([]Response, error)
	ListForPrincipal(ctx context.Context) ([]Response, error)
	Update(ctx context.Context, orgID snowflake.ID, id string, req UpdateRequest) (*Response, error)
	Revoke(ctx context.Context, orgID snowflake.ID, id string) error
	Accept(ctx context.Context, code string) (*AcceptResponse, error)
	Decline(ctx context.Context, code string) error
}

type CreateRequest struct {
	Email       string   `json:"email" binding:"required,email,max=320"`
	Permissions []string `json:"permissions" binding:"omitempty,dive,required"`
}

type UpdateRequest struct {
	Permissions []string `json:"permissions" binding:"omitempty,dive,required"`
}

type Response struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	Permissions    []string  `json:"permissions"`
	Code           string    `json:"code"`
	InvitedBy      string    `json:"invited_by"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type AcceptResponse struct {
	OrganizationID string   `json:"organization_id"`
	Permissions    []string `json:"permissions"`
}

var (
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrInvalidCode    = errors.New("invalid_code")
	ErrInvalidID      = errors.New("invalid_id")
	ErrAlreadyInvited = errors.New("already_invited")
	ErrAlreadyMember  = errors.New("already_member")
	ErrExpired        = errors.New("invitation_expired")
	ErrNotFound       = errors.New("not_found")
)
