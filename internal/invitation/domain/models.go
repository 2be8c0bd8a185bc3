package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Invitation is a pending offer of membership. There is at most one per
// organization and email; it is deleted when accepted, declined, revoked or edited.
type Invitation struct {
	ID          snowflake.ID                `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID                `gorm:"column:org_id;not null;uniqueIndex:ux_organization_invites_org_email,priority:1" json:"organization_id"`
	Email       string                      `gorm:"type:varchar(320);not null;uniqueIndex:ux_organization_invites_org_email,priority:2;index" json:"email"`
	Permissions datatypes.JSONSlice[string] `gorm:"not null" json:"permissions"`
	Code        string                      `gorm:"type:varchar(26);not null;uniqueIndex:ux_organization_invites_code" json:"code"`
	InvitedBy   snowflake.ID                `gorm:"column:invited_by;not null" json:"invited_by"`
	ExpiresAt   time.Time                   `gorm:"column:expires_at;not null" json:"expires_at"`
	CreatedAt   time.Time                   `gorm:"not null" json:"created_at"`
}

func (Invitation) TableName() string { return "organization_invites" }

func (i *Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
