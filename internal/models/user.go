package models

import "gorm.io/gorm"

const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
	ProviderKakao  = "kakao"
)

type User struct {
	gorm.Model

	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string
	AvatarURL    string
	Provider     string  `gorm:"not null;default:local;uniqueIndex:idx_user_provider"`
	ProviderID   *string `gorm:"uniqueIndex:idx_user_provider"`

	// Relationships
	TeamMemberships   []TeamMember            `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Notifications     []Notification          `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	PushSubscriptions []PushSubscription      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Preference        *NotificationPreference `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// HasPassword is false for accounts created through an OAuth provider.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
