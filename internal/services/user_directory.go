package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/estatevest/platform/internal/models"
)

// UserFilter narrows directory queries. An empty Roles list matches every role.
type UserFilter struct {
	EnabledOnly bool
	Roles       []models.Role
}

// UserDirectory is the read-only view of the user store the notification core depends on.
type UserDirectory interface {
	CountUsers(ctx context.Context, filter UserFilter) (int64, error)
	ListUserIDs(ctx context.Context, filter UserFilter) ([]string, error)
}

// GormUserDirectory implements UserDirectory over the users table.
type GormUserDirectory struct {
	db *gorm.DB
}

// NewUserDirectory constructs a GORM-backed user directory.
func NewUserDirectory(db *gorm.DB) (*GormUserDirectory, error) {
	if db == nil {
		return nil, errors.New("user directory: db is required")
	}
	return &GormUserDirectory{db: db}, nil
}

// CountUsers returns the number of users matching filter.
func (d *GormUserDirectory) CountUsers(ctx context.Context, filter UserFilter) (int64, error) {
	ctx = ensureContext(ctx)

	var total int64
	if err := d.scope(ctx, filter).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("user directory: count users: %w", err)
	}
	return total, nil
}

// ListUserIDs returns the ids of users matching filter, oldest account first.
func (d *GormUserDirectory) ListUserIDs(ctx context.Context, filter UserFilter) ([]string, error) {
	ctx = ensureContext(ctx)

	var ids []string
	if err := d.scope(ctx, filter).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("user directory: list user ids: %w", err)
	}
	return ids, nil
}

func (d *GormUserDirectory) scope(ctx context.Context, filter UserFilter) *gorm.DB {
	query := d.db.WithContext(ctx).Model(&models.User{})
	if filter.EnabledOnly {
		query = query.Where("is_enabled = ?", true)
	}
	if len(filter.Roles) > 0 {
		query = query.Where("role IN ?", filter.Roles)
	}
	return query
}
