package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Service operates on behalf of the principal carried in ctx.
type Service interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (*OrganizationResponse, error)
	ListForUser(ctx context.Context) ([]OrganizationListResponseItem, error)
	Get(ctx context.Context, orgID snowflake.ID) (*OrganizationResponse, error)
	Delete(ctx context.Context, orgID snowflake.ID) error
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]MemberResponse, error)
	UpdateMemberPermissions(ctx context.Context, orgID, userID snowflake.ID, req UpdateMemberRequest) (*MemberResponse, error)
	RemoveMember(ctx context.Context, orgID, userID snowflake.ID) error
}

type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required,max=120"`
}

type UpdateMemberRequest struct {
	Permissions []string `json:"permissions" binding:"omitempty,dive,required"`
}

type OrganizationResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

type OrganizationListResponseItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

type MemberResponse struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	Permissions []string  `json:"permissions"`
	Accepted    bool      `json:"accepted"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("not_found")
)
