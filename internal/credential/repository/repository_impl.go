package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgkeys/internal/credential/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const tokenColumns = `id, org_id, user_id, name, token_hash, suffix, scopes, one_time, expires_at, consumed_at, last_used_at, created_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, token *domain.APIToken) error {
	if token.Scopes == nil {
		token.Scopes = datatypes.JSONSlice[string]{}
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO api_tokens (`+tokenColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID,
		token.OrgID,
		token.UserID,
		token.Name,
		token.TokenHash,
		token.Suffix,
		token.Scopes,
		token.OneTime,
		token.ExpiresAt,
		token.ConsumedAt,
		token.LastUsedAt,
		token.CreatedAt,
	).Error
}

func (r *repo) FindActiveByHash(ctx context.Context, db *gorm.DB, hash string) (*domain.APIToken, error) {
	return r.findOne(ctx, db, `token_hash = ? AND consumed_at IS NULL`, hash)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.APIToken, error) {
	return r.findOne(ctx, db, `org_id = ? AND id = ?`, orgID, id)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, args ...any) (*domain.APIToken, error) {
	var token domain.APIToken
	err := db.WithContext(ctx).Raw(
		`SELECT `+tokenColumns+` FROM api_tokens WHERE `+where+` LIMIT 1`,
		args...,
	).Scan(&token).Error
	if err != nil {
		return nil, err
	}
	if token.ID == 0 {
		return nil, nil
	}
	return &token, nil
}

func (r *repo) ListByOwner(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) ([]domain.APIToken, error) {
	var tokens []domain.APIToken
	err := db.WithContext(ctx).Raw(
		`SELECT `+tokenColumns+` FROM api_tokens
		 WHERE org_id = ? AND user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		orgID,
		userID,
	).Scan(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// Consume is a single conditional statement; the affected-row count decides
// which concurrent verifier wins.
func (r *repo) Consume(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE api_tokens SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`,
		at,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_tokens SET last_used_at = ? WHERE id = ?`,
		at,
		id,
	).Error
}

func (r *repo) DeleteByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM api_tokens WHERE id = ?`, id)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) DeleteByOwner(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM api_tokens WHERE org_id = ? AND user_id = ?`,
		orgID,
		userID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) DeleteByOrganization(ctx context.Context, db *gorm.DB, orgID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM api_tokens WHERE org_id = ?`, orgID).Error
}
