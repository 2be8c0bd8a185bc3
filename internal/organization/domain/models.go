// Package domain contains persistence models for organizations and memberships.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant.
type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Slug      string       `gorm:"type:varchar(191);not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// OrganizationMember ties one principal to one organization with a set of permission flags.
type OrganizationMember struct {
	ID          snowflake.ID                `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID                `gorm:"not null;uniqueIndex:ux_org_user,priority:1" json:"org_id"`
	UserID      snowflake.ID                `gorm:"not null;index;uniqueIndex:ux_org_user,priority:2" json:"user_id"`
	Email       string                      `gorm:"type:text;not null;default:''" json:"email"`
	Permissions datatypes.JSONSlice[string] `gorm:"not null" json:"permissions"`
	Accepted    bool                        `gorm:"not null;default:true" json:"accepted"`
	CreatedAt   time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time                   `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }
