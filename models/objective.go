package models

import "time"

// ObjectiveKind distinguishes objectives checked against metrics from those completed by events.
type ObjectiveKind string

const (
	ObjectiveQuantitative ObjectiveKind = "quantitative"
	ObjectiveQualitative  ObjectiveKind = "qualitative"
)

// Valid reports whether k is a known kind.
func (k ObjectiveKind) Valid() bool {
	return k == ObjectiveQuantitative || k == ObjectiveQualitative
}

// ObjectiveDefinition is a catalog entry. Only active definitions are assigned to users.
// Active deliberately has no gorm default so that false is persisted on create.
type ObjectiveDefinition struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	Name          string        `gorm:"size:128;not null" json:"name"`
	Description   string        `gorm:"size:512" json:"description"`
	Kind          ObjectiveKind `gorm:"size:16;not null;index" json:"kind"`
	Requirement   string        `gorm:"size:64;not null" json:"requirement"`
	RequiredValue int64         `gorm:"not null;default:0" json:"required_value"`
	Prize         int64         `gorm:"not null;default:0" json:"prize"`
	Active        bool          `gorm:"not null;index" json:"active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
