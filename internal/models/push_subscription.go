package models

type PushSubscription struct {
	BaseModel

	UserID    uint   `gorm:"not null;index"`
	Endpoint  string `gorm:"not null;uniqueIndex"`
	P256dh    string `gorm:"not null"`
	Auth      string `gorm:"not null"`
	UserAgent string
}
