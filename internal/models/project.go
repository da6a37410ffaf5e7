package models

import "gorm.io/gorm"

type Project struct {
	gorm.Model

	TeamID      uint   `gorm:"not null;index"`
	Name        string `gorm:"not null"`
	Description string
	Color       string
	Archived    bool `gorm:"not null;default:false"`

	// Relationships
	Team  Team   `gorm:"foreignKey:TeamID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Tasks []Task `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}
