package services

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/refit/refit-api/models"
)

// forUpdate adds a row lock to the next query. SQLite has no row locks and
// serializes writers on its own, so the clause is skipped there.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector != nil && tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockUser loads the user row under an exclusive lock. Every mutating
// operation starts here so the user row is always the first lock taken.
func lockUser(tx *gorm.DB, userID uint) (models.User, error) {
	var user models.User
	if err := forUpdate(tx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		return user, err
	}
	return user, nil
}

// saveUserCounters persists the engine-owned columns of user.
func saveUserCounters(tx *gorm.DB, user *models.User) error {
	return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"total_steps":       user.TotalSteps,
		"coins":             user.Coins,
		"streak":            user.Streak,
		"streak_updated_at": user.StreakUpdatedAt,
		"last_sync":         user.LastSync,
	}).Error
}
