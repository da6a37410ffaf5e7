package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	NotificationTaskAssigned      = "task_assigned"
	NotificationTaskStatusChanged = "task_status_changed"
	NotificationTaskCommented     = "task_commented"
	NotificationTaskDueSoon       = "task_due_soon"
	NotificationTaskOverdue       = "task_overdue"
	NotificationTeamMemberAdded   = "team_member_added"
)

type Notification struct {
	gorm.Model

	UserID  uint   `gorm:"not null;index"`
	TeamID  *uint  `gorm:"index"`
	TaskID  *uint  `gorm:"index"`
	Type    string `gorm:"not null"`
	Title   string `gorm:"not null"`
	Message string
	Data    datatypes.JSON `gorm:"type:jsonb"`
	ReadAt  *time.Time     `gorm:"index"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
