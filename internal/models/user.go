package models

// User is the slice of the platform user record the notification subsystem reads.
// Account management lives elsewhere; this model only carries role, enablement
// and the summary fields surfaced in analytics.
type User struct {
	BaseModel

	Email     string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FirstName string `gorm:"size:128" json:"first_name"`
	LastName  string `gorm:"size:128" json:"last_name"`
	Role      Role   `gorm:"size:32;not null;index" json:"role"`
	IsEnabled bool   `gorm:"not null;index" json:"is_enabled"`
}
