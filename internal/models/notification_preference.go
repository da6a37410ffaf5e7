package models

type NotificationPreference struct {
	BaseModel

	UserID       uint `gorm:"not null;uniqueIndex"`
	InApp        bool `gorm:"not null;default:true"`
	Push         bool `gorm:"not null;default:true"`
	TaskAssigned bool `gorm:"not null;default:true"`
	TaskComment  bool `gorm:"not null;default:true"`
	TaskStatus   bool `gorm:"not null;default:true"`
	DueReminder  bool `gorm:"not null;default:true"`
}

func DefaultNotificationPreference(userID uint) NotificationPreference {
	return NotificationPreference{
		UserID:       userID,
		InApp:        true,
		Push:         true,
		TaskAssigned: true,
		TaskComment:  true,
		TaskStatus:   true,
		DueReminder:  true,
	}
}

// Allows reports whether notifications of the given type are wanted at all.
func (p *NotificationPreference) Allows(notificationType string) bool {
	switch notificationType {
	case NotificationTaskAssigned:
		return p.TaskAssigned
	case NotificationTaskCommented:
		return p.TaskComment
	case NotificationTaskStatusChanged:
		return p.TaskStatus
	case NotificationTaskDueSoon, NotificationTaskOverdue:
		return p.DueReminder
	default:
		return true
	}
}
