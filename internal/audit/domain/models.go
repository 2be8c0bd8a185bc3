package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser       ActorType = "user"
	ActorTypeCredential ActorType = "api_token"
	ActorTypeSystem     ActorType = "system"
)

// Audit actions. Metadata for these never carries a raw credential.
const (
	ActionOrganizationCreated = "organization.created"
	ActionOrganizationDeleted = "organization.deleted"
	ActionMemberUpdated       = "organization_member.updated"
	ActionMemberRemoved       = "organization_member.removed"
	ActionInvitationCreated   = "invitation.created"
	ActionInvitationUpdated   = "invitation.updated"
	ActionInvitationRevoked   = "invitation.revoked"
	ActionInvitationAccepted  = "invitation.accepted"
	ActionInvitationDeclined  = "invitation.declined"
	ActionAPITokenCreated     = "api_token.created"
	ActionAPITokenDeleted     = "api_token.deleted"
	ActionAPITokenConsumed    = "api_token.consumed"
)

// AuditLog is an append-only record of a security-relevant event.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID      *snowflake.ID     `gorm:"column:org_id;index:ix_audit_logs_org_created,priority:1" json:"org_id,omitempty"`
	ActorType  string            `gorm:"column:actor_type;type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"column:actor_id;type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null" json:"action"`
	TargetType string            `gorm:"column:target_type;type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"column:target_id;type:text" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	IPAddress  *string           `gorm:"column:ip_address;type:text" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"column:user_agent;type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index:ix_audit_logs_org_created,priority:2" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
