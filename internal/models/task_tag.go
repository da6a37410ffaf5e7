package models

type TaskTag struct {
	ID     uint   `gorm:"primarykey"`
	TaskID uint   `gorm:"not null;uniqueIndex:idx_task_tag"`
	Name   string `gorm:"not null;uniqueIndex:idx_task_tag;index"`
}
