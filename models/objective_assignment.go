package models

import "time"

// AssignmentState is derived from the completion and redemption timestamps.
type AssignmentState string

const (
	StateAssigned  AssignmentState = "assigned"
	StateCompleted AssignmentState = "completed"
	StateRedeemed  AssignmentState = "redeemed"
)

// ObjectiveAssignment links a user to one definition for one calendar day.
type ObjectiveAssignment struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	UserID         uint                `gorm:"not null;uniqueIndex:idx_assign_user_obj_date,priority:1;index:idx_assign_user_date,priority:1" json:"user_id"`
	ObjectiveID    uint                `gorm:"not null;uniqueIndex:idx_assign_user_obj_date,priority:2" json:"objective_id"`
	AssignmentDate string              `gorm:"size:10;not null;uniqueIndex:idx_assign_user_obj_date,priority:3;index:idx_assign_user_date,priority:2" json:"assignment_date"`
	CompletedAt    *time.Time          `json:"completed_at"`
	RedeemedAt     *time.Time          `json:"redeemed_at"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Objective      ObjectiveDefinition `gorm:"foreignKey:ObjectiveID" json:"objective"`
}

// State returns the lifecycle position of the assignment.
func (a ObjectiveAssignment) State() AssignmentState {
	switch {
	case a.RedeemedAt != nil:
		return StateRedeemed
	case a.CompletedAt != nil:
		return StateCompleted
	default:
		return StateAssigned
	}
}
