package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/estatevest/platform/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
// Users must precede the tables that reference them.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	return db.AutoMigrate(
		&models.User{},
		&models.Notification{},
		&models.GlobalNotification{},
		&models.GlobalNotificationView{},
		&models.CacheEntry{},
	)
}
