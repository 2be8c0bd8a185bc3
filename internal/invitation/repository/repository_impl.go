package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgkeys/internal/invitation/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const inviteColumns = `id, org_id, email, permissions, code, invited_by, expires_at, created_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invite *domain.Invitation) error {
	if invite.Permissions == nil {
		invite.Permissions = datatypes.JSONSlice[string]{}
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO organization_invites (`+inviteColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		invite.ID,
		invite.OrgID,
		invite.Email,
		invite.Permissions,
		invite.Code,
		invite.InvitedBy,
		invite.ExpiresAt,
		invite.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Invitation, error) {
	return r.findOne(ctx, db, `org_id = ? AND id = ?`, orgID, id)
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Invitation, error) {
	return r.findOne(ctx, db, `code = ?`, code)
}

func (r *repo) FindByOrgEmail(ctx context.Context, db *gorm.DB, orgID snowflake.ID, email string) (*domain.Invitation, error) {
	return r.findOne(ctx, db, `org_id = ? AND email = ?`, orgID, email)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, args ...any) (*domain.Invitation, error) {
	var invite domain.Invitation
	err := db.WithContext(ctx).Raw(
		`SELECT `+inviteColumns+` FROM organization_invites WHERE `+where+` LIMIT 1`,
		args...,
	).Scan(&invite).Error
	if err != nil {
		return nil, err
	}
	if invite.ID == 0 {
		return nil, nil
	}
	return &invite, nil
}

func (r *repo) ListByOrganization(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.Invitation, error) {
	return r.list(ctx, db, `org_id = ?`, orgID)
}

func (r *repo) ListByEmail(ctx context.Context, db *gorm.DB, email string) ([]domain.Invitation, error) {
	return r.list(ctx, db, `email = ?`, email)
}

func (r *repo) list(ctx context.Context, db *gorm.DB, where string, args ...any) ([]domain.Invitation, error) {
	var invites []domain.Invitation
	err := db.WithContext(ctx).Raw(
		`SELECT `+inviteColumns+` FROM organization_invites WHERE `+where+` ORDER BY created_at ASC, id ASC`,
		args...,
	).Scan(&invites).Error
	if err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *repo) DeleteByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM organization_invites WHERE id = ?`, id)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) DeleteByOrganization(ctx context.Context, db *gorm.DB, orgID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM organization_invites WHERE org_id = ?`, orgID).Error
}
