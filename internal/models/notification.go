package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// NotificationType classifies the domain event that produced a notification.
type NotificationType string

const (
	NotificationTypeContract    NotificationType = "contract"
	NotificationTypeProperty    NotificationType = "property"
	NotificationTypeAppointment NotificationType = "appointment"
	NotificationTypeEvent       NotificationType = "event"
	NotificationTypeUser        NotificationType = "user"
	NotificationTypeSystem      NotificationType = "system"
)

// ErrUnknownNotificationType is returned for values outside NotificationType.
var ErrUnknownNotificationType = errors.New("unknown notification type")

var allNotificationTypes = []NotificationType{
	NotificationTypeContract,
	NotificationTypeProperty,
	NotificationTypeAppointment,
	NotificationTypeEvent,
	NotificationTypeUser,
	NotificationTypeSystem,
}

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	for _, known := range allNotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseNotificationType normalises and validates a raw notification type.
func ParseNotificationType(raw string) (NotificationType, error) {
	t := NotificationType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownNotificationType, raw)
	}
	return t, nil
}

// NotificationStatus is the read state of a per-user notification.
type NotificationStatus string

const (
	NotificationStatusUnread NotificationStatus = "unread"
	NotificationStatusRead   NotificationStatus = "read"
)

// Notification is a message addressed to a single user.
//
// TargetRoles and IsGlobal belong to the retired broadcast path and are only
// read back for legacy rows; new rows always have IsGlobal=false and a UserID.
type Notification struct {
	BaseModel

	UserID  *string          `gorm:"size:36;index" json:"user_id,omitempty"`
	User    *User            `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Type    NotificationType `gorm:"size:32;not null;index" json:"type"`
	Title   string           `gorm:"size:255;not null" json:"title"`
	Message string           `gorm:"type:text;not null" json:"message"`
	Link    string           `gorm:"type:text" json:"link,omitempty"`

	TargetRoles datatypes.JSONSlice[Role] `json:"target_roles,omitempty"`
	IsGlobal    bool                      `gorm:"not null;index" json:"is_global"`

	Payload datatypes.JSON     `json:"payload,omitempty"`
	Status  NotificationStatus `gorm:"size:16;not null;index" json:"status"`
	ReadAt  *time.Time         `json:"read_at,omitempty"`
}
