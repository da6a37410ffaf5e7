package models

import "time"

// BaseModel is gorm.Model without soft deletes, for rows that are removed for
// good (join rows, subscriptions) so unique indexes do not collide with
// tombstones.
type BaseModel struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
