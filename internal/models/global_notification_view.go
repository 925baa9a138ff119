package models

import (
	"time"

	"gorm.io/gorm"
)

// GlobalNotificationView records that a user saw (and possibly dismissed) a
// global notification. At most one row exists per (user, notification).
type GlobalNotificationView struct {
	ID                   string              `gorm:"primaryKey;size:36" json:"id"`
	UserID               string              `gorm:"size:36;not null;uniqueIndex:idx_global_view_user_notification,priority:1" json:"user_id"`
	User                 *User               `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	GlobalNotificationID string              `gorm:"size:36;not null;index;uniqueIndex:idx_global_view_user_notification,priority:2" json:"global_notification_id"`
	GlobalNotification   *GlobalNotification `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ViewedAt             time.Time           `gorm:"not null;index" json:"viewed_at"`
	Dismissed            bool                `gorm:"not null;index" json:"dismissed"`
}

// BeforeCreate assigns an identifier for new view rows.
func (v *GlobalNotificationView) BeforeCreate(tx *gorm.DB) error {
	v.ID = ensureID(v.ID)
	return nil
}
