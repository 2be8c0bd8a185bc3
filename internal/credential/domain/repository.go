package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, token *APIToken) error
	// FindActiveByHash returns the unconsumed credential with the digest, or nil.
	FindActiveByHash(ctx context.Context, db *gorm.DB, hash string) (*APIToken, error)
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*APIToken, error)
	ListByOwner(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) ([]APIToken, error)
	// Consume marks a one-time credential used. It reports false when another
	// caller consumed it first.
	Consume(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	DeleteByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	DeleteByOwner(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) (int64, error)
	DeleteByOrganization(ctx context.Context, db *gorm.DB, orgID snowflake.ID) error
}
