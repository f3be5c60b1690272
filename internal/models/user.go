package models

import "time"

// Marketplace roles.
const (
	RoleBuyer     = "buyer"
	RoleFarmer    = "farmer"
	RoleLogistics = "logistics"
	RoleAdmin     = "admin"
)

// NotificationPreferences holds the per-channel choices a user made in their
// profile. A nil flag means the user never touched that setting.
type NotificationPreferences struct {
	InApp *bool `gorm:"column:in_app" json:"inApp,omitempty"`
	Email *bool `gorm:"column:email" json:"email,omitempty"`
	SMS   *bool `gorm:"column:sms" json:"sms,omitempty"`
}

// User is a marketplace account. The notification service only reads users.
type User struct {
	BaseModel

	Name     string `gorm:"type:varchar(255)" json:"name"`
	Email    string `gorm:"type:varchar(255);index" json:"email"`
	Phone    string `gorm:"type:varchar(32)" json:"phone,omitempty"`
	Role     string `gorm:"type:varchar(32);index" json:"role"`
	IsActive bool   `gorm:"index" json:"isActive"`

	Preferences NotificationPreferences `gorm:"embedded;embeddedPrefix:notify_" json:"notificationPreferences"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
