package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	DefaultReminderHoursBefore = 24
	DefaultDigestHour          = 9
)

type Team struct {
	gorm.Model

	Name        string `gorm:"not null"`
	Description string
	OwnerID     uint `gorm:"not null;index"`

	DiscordWebhook      string
	DiscordEnabled      bool `gorm:"not null;default:false"`
	ReminderHoursBefore int  `gorm:"not null;default:24"`
	DigestHour          int  `gorm:"not null;default:9"`
	LastDigestAt        *time.Time

	// Relationships
	Owner    User         `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Members  []TeamMember `gorm:"foreignKey:TeamID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Projects []Project    `gorm:"foreignKey:TeamID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Tasks    []Task       `gorm:"foreignKey:TeamID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// DiscordActive reports whether task events should be posted to Discord.
func (t *Team) DiscordActive() bool {
	return t.DiscordEnabled && t.DiscordWebhook != ""
}
