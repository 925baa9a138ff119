package models

import (
	"time"

	"gorm.io/datatypes"
)

// Priority values used by the admin console. The column is free-form.
const (
	PriorityLow      = "low"
	PriorityNormal   = "normal"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// GlobalNotification is a role-targeted announcement. An empty TargetRoles list
// addresses every role.
type GlobalNotification struct {
	BaseModel

	Title       string                    `gorm:"size:255;not null" json:"title"`
	Message     string                    `gorm:"type:text;not null" json:"message"`
	Type        NotificationType          `gorm:"size:32;not null" json:"type"`
	TargetRoles datatypes.JSONSlice[Role] `json:"target_roles"`
	Link        string                    `gorm:"type:text" json:"link,omitempty"`
	Priority    string                    `gorm:"size:16;not null" json:"priority"`
	Icon        string                    `gorm:"size:64" json:"icon,omitempty"`
	Payload     datatypes.JSON            `json:"payload,omitempty"`

	StartsAt  time.Time  `gorm:"not null;index" json:"starts_at"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	IsActive  bool       `gorm:"not null;index" json:"is_active"`
}

// VisibleAt reports whether the schedule and activation flag make the
// notification visible at the supplied instant, ignoring role targeting.
func (g *GlobalNotification) VisibleAt(at time.Time) bool {
	if !g.IsActive || g.StartsAt.After(at) {
		return false
	}
	return g.ExpiresAt == nil || !g.ExpiresAt.Before(at)
}

// Targets reports whether users holding role are addressed by the notification.
func (g *GlobalNotification) Targets(role Role) bool {
	if len(g.TargetRoles) == 0 {
		return true
	}
	for _, target := range g.TargetRoles {
		if target == role {
			return true
		}
	}
	return false
}
