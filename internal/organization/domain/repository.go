package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type OrganizationListItem struct {
	ID          snowflake.ID
	Name        string
	Slug        string
	Permissions []string
	CreatedAt   time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrganization(ctx context.Context, org Organization) error
	GetOrganization(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	DeleteOrganization(ctx context.Context, orgID snowflake.ID) error
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListItem, error)

	AddMember(ctx context.Context, member OrganizationMember) error
	FindMembership(ctx context.Context, orgID, userID snowflake.ID) (*OrganizationMember, error)
	FindMembershipByEmail(ctx context.Context, orgID snowflake.ID, email string) (*OrganizationMember, error)
	CountAcceptedMembers(ctx context.Context, orgID, excluding snowflake.ID) (int64, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]OrganizationMember, error)
	UpdateMemberPermissions(ctx context.Context, orgID, userID snowflake.ID, permissions []string, at time.Time) (bool, error)
	RemoveMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error)
	DeleteMembers(ctx context.Context, orgID snowflake.ID) error
}
