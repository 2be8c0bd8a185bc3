package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/orgkeys/internal/audit/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

// Provide returns the stateless audit repository; callers pass the connection.
func Provide() domain.Repository {
	return &repo{}
}

// Insert appends one entry. Entries are never updated or deleted.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	if entry.Metadata == nil {
		entry.Metadata = datatypes.JSONMap{}
	}
	return db.WithContext(ctx).Create(entry).Error
}

// List returns up to filter.Limit+1 rows so the caller can detect another page.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	stmt := db.WithContext(ctx).Model(&domain.AuditLog{}).Where("org_id = ?", filter.OrgID)

	equals := map[string]string{
		"action":      filter.Action,
		"target_type": filter.TargetType,
		"target_id":   filter.TargetID,
		"actor_type":  filter.ActorType,
	}
	for column, value := range equals {
		if value = strings.TrimSpace(value); value != "" {
			stmt = stmt.Where(column+" = ?", value)
		}
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var logs []*domain.AuditLog
	if err := stmt.Order("created_at desc, id desc").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
