package models

import "time"

// DateLayout is the calendar-day format used for step and assignment dates.
const DateLayout = "2006-01-02"

// StepRecord holds the step count of one user for one calendar day.
// Date is stored as YYYY-MM-DD so range filters compare lexicographically.
type StepRecord struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID uint   `gorm:"not null;uniqueIndex:idx_step_user_date,priority:1" json:"user_id"`
	Date   string `gorm:"size:10;not null;uniqueIndex:idx_step_user_date,priority:2" json:"date"`
	Steps  int64  `gorm:"not null;default:0" json:"steps"`
	// CreditedSteps is the highest count of this day that has already been paid in coins.
	CreditedSteps int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
