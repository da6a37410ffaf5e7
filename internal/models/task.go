package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusReview     = "review"
	TaskStatusDone       = "done"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var (
	TaskStatuses   = []string{TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusDone}
	TaskPriorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
)

type Task struct {
	gorm.Model

	TeamID      uint       `gorm:"not null;index"`
	ProjectID   *uint      `gorm:"index"`
	CreatorID   uint       `gorm:"not null;index"`
	AssigneeID  *uint      `gorm:"index"`
	Title       string     `gorm:"not null"`
	Description string
	Status      string     `gorm:"not null;default:todo;index"`
	Priority    string     `gorm:"not null;default:medium"`
	DueDate     *time.Time `gorm:"index"`
	CompletedAt *time.Time
	Position    int `gorm:"not null;default:0"`

	ReminderSentAt    *time.Time
	OverdueNotifiedAt *time.Time

	// Relationships
	Team     Team          `gorm:"foreignKey:TeamID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Project  *Project      `gorm:"foreignKey:ProjectID"`
	Creator  User          `gorm:"foreignKey:CreatorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Assignee *User         `gorm:"foreignKey:AssigneeID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Tags     []TaskTag     `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Comments []TaskComment `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (t *Task) IsDone() bool {
	return t.Status == TaskStatusDone
}

// RecipientID is the user reminders go to: the assignee, else the creator.
func (t *Task) RecipientID() uint {
	if t.AssigneeID != nil {
		return *t.AssigneeID
	}
	return t.CreatorID
}

func ValidTaskStatus(status string) bool {
	for _, s := range TaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func ValidTaskPriority(priority string) bool {
	for _, p := range TaskPriorities {
		if p == priority {
			return true
		}
	}
	return false
}
