package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the account that owns step records, the coin balance and the daily streak.
type User struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Username        string         `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email           string         `gorm:"size:255" json:"email"`
	TotalSteps      int64          `gorm:"not null;default:0" json:"total_steps"`
	Coins           int64          `gorm:"not null;default:0" json:"coins"`
	Streak          int            `gorm:"not null;default:0" json:"streak"`
	StreakUpdatedAt *time.Time     `json:"streak_updated_at"`
	DailyGoal       int            `gorm:"not null;default:10000" json:"daily_goal"`
	LastSync        *time.Time     `json:"last_sync"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}
