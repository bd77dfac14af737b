package models

import "time"

// User is the local record synced from the external identity provider.
type User struct {
	Base
	ProviderUID        string     `gorm:"uniqueIndex;not null" json:"provider_uid"`
	Email              string     `gorm:"uniqueIndex;not null" json:"email"`
	Name               string     `json:"name"`
	EmailNotifications bool       `gorm:"not null;default:true" json:"email_notifications"`
	MonthlyReport      bool       `gorm:"not null;default:true" json:"monthly_report"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
}
