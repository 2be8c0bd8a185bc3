package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invite *Invitation) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Invitation, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Invitation, error)
	FindByOrgEmail(ctx context.Context, db *gorm.DB, orgID snowflake.ID, email string) (*Invitation, error)
	ListByOrganization(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Invitation, error)
	ListByEmail(ctx context.Context, db *gorm.DB, email string) ([]Invitation, error)
	DeleteByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	DeleteByOrganization(ctx context.Context, db *gorm.DB, orgID snowflake.ID) error
}
