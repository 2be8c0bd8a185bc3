package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgkeys/internal/organization/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const memberColumns = `id, org_id, user_id, email, permissions, accepted, created_at, updated_at`

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organizations (id, name, slug, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		org.ID,
		org.Name,
		org.Slug,
		org.CreatedAt,
		org.UpdatedAt,
	).Error
}

func (r *repository) GetOrganization(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, slug, created_at, updated_at FROM organizations WHERE id = ?`,
		orgID,
	).Scan(&org).Error
	if err != nil {
		return nil, err
	}
	if org.ID == 0 {
		return nil, nil
	}
	return &org, nil
}

func (r *repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM organizations WHERE slug = ?`,
		slug,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repository) DeleteOrganization(ctx context.Context, orgID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(`DELETE FROM organizations WHERE id = ?`, orgID).Error
}

func (r *repository) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	var rows []struct {
		ID          snowflake.ID
		Name        string
		Slug        string
		Permissions datatypes.JSONSlice[string]
		CreatedAt   time.Time
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.slug, m.permissions, o.created_at
		 FROM organizations o
		 JOIN organization_members m ON m.org_id = o.id
		 WHERE m.user_id = ? AND m.accepted = ?
		 ORDER BY o.created_at ASC, o.id ASC`,
		userID,
		true,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]domain.OrganizationListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.OrganizationListItem{
			ID:          row.ID,
			Name:        row.Name,
			Slug:        row.Slug,
			Permissions: []string(row.Permissions),
			CreatedAt:   row.CreatedAt,
		})
	}
	return items, nil
}

func (r *repository) AddMember(ctx context.Context, member domain.OrganizationMember) error {
	if member.Permissions == nil {
		member.Permissions = datatypes.JSONSlice[string]{}
	}
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organization_members (`+memberColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		member.ID,
		member.OrgID,
		member.UserID,
		member.Email,
		member.Permissions,
		member.Accepted,
		member.CreatedAt,
		member.UpdatedAt,
	).Error
}

func (r *repository) FindMembership(ctx context.Context, orgID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	return r.findMember(ctx, `org_id = ? AND user_id = ?`, orgID, userID)
}

func (r *repository) FindMembershipByEmail(ctx context.Context, orgID snowflake.ID, email string) (*domain.OrganizationMember, error) {
	return r.findMember(ctx, `org_id = ? AND LOWER(email) = ?`, orgID, email)
}

func (r *repository) findMember(ctx context.Context, where string, args ...any) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).Raw(
		`SELECT `+memberColumns+` FROM organization_members WHERE `+where+` LIMIT 1`,
		args...,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repository) CountAcceptedMembers(ctx context.Context, orgID, excluding snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM organization_members
		 WHERE org_id = ? AND user_id <> ? AND accepted = ?`,
		orgID,
		excluding,
		true,
	).Scan(&count).Error
	return count, err
}

func (r *repository) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.OrganizationMember, error) {
	var members []domain.OrganizationMember
	err := r.db.WithContext(ctx).Raw(
		`SELECT `+memberColumns+` FROM organization_members
		 WHERE org_id = ?
		 ORDER BY created_at ASC, id ASC`,
		orgID,
	).Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) UpdateMemberPermissions(ctx context.Context, orgID, userID snowflake.ID, permissions []string, at time.Time) (bool, error) {
	if permissions == nil {
		permissions = []string{}
	}
	res := r.db.WithContext(ctx).Exec(
		`UPDATE organization_members SET permissions = ?, updated_at = ?
		 WHERE org_id = ? AND user_id = ?`,
		datatypes.NewJSONSlice(permissions),
		at,
		orgID,
		userID,
	)
	return res.RowsAffected > 0, res.Error
}

// RemoveMember deletes the membership only while another accepted member
// remains. It takes a row lock on the organization first, so it must run
// inside a transaction for concurrent removals to see each other.
func (r *repository) RemoveMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error) {
	err := r.db.WithContext(ctx).Exec(
		`UPDATE organizations SET updated_at = updated_at WHERE id = ?`,
		orgID,
	).Error
	if err != nil {
		return false, err
	}

	res := r.db.WithContext(ctx).Exec(
		`DELETE FROM organization_members
		 WHERE org_id = ? AND user_id = ?
		   AND EXISTS (
		     SELECT 1 FROM (
		       SELECT id FROM organization_members
		       WHERE org_id = ? AND user_id <> ? AND accepted = ?
		     ) others
		   )`,
		orgID,
		userID,
		orgID,
		userID,
		true,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repository) DeleteMembers(ctx context.Context, orgID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(`DELETE FROM organization_members WHERE org_id = ?`, orgID).Error
}
