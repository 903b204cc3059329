package models

import (
	"time"

	"gorm.io/gorm"
)

// ProfileHistory records a change to a profile's goals
type ProfileHistory struct {
	gorm.Model
	UserID    string    `gorm:"size:64;index;not null" json:"user_id"`
	Field     string    `gorm:"not null" json:"field"` // The field that was changed
	OldValue  string    `gorm:"type:text" json:"old_value"`
	NewValue  string    `gorm:"type:text" json:"new_value"`
	ChangedAt time.Time `gorm:"not null" json:"changed_at"`
}

// TableName specifies the table name for ProfileHistory
func (ProfileHistory) TableName() string {
	return "profile_history"
}
