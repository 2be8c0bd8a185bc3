package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// APIToken is the stored half of an issued credential. The raw token is
// never persisted: only its SHA-256 digest and a short display suffix.
type APIToken struct {
	ID         snowflake.ID                `gorm:"primaryKey"`
	OrgID      snowflake.ID                `gorm:"column:org_id;not null;index:ix_api_tokens_org_user,priority:1"`
	UserID     snowflake.ID                `gorm:"column:user_id;not null;index:ix_api_tokens_org_user,priority:2"`
	Name       string                      `gorm:"type:text;not null"`
	TokenHash  string                      `gorm:"column:token_hash;type:varchar(64);not null;uniqueIndex:ux_api_tokens_token_hash"`
	Suffix     string                      `gorm:"type:varchar(8);not null"`
	Scopes     datatypes.JSONSlice[string] `gorm:"not null"`
	OneTime    bool                        `gorm:"column:one_time;not null;default:false"`
	ExpiresAt  *time.Time                  `gorm:"column:expires_at"`
	ConsumedAt *time.Time                  `gorm:"column:consumed_at"`
	LastUsedAt *time.Time                  `gorm:"column:last_used_at"`
	CreatedAt  time.Time                   `gorm:"not null"`
}

func (APIToken) TableName() string { return "api_tokens" }

// Expired reports whether the stored expiry has passed at now.
func (t *APIToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}
