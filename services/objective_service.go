package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/refit/refit-api/models"
	"github.com/refit/refit-api/utils"
)

// CompletionResult describes a successful completion.
type CompletionResult struct {
	Assignment        models.ObjectiveAssignment `json:"assignment"`
	Streak            int                        `json:"streak"`
	StreakIncremented bool                       `json:"streak_incremented"`
}

// RedeemResult describes a successful redemption.
type RedeemResult struct {
	Assignment   models.ObjectiveAssignment `json:"assignment"`
	CoinsAwarded int64                      `json:"coins_awarded"`
	Coins        int64                      `json:"coins"`
}

// ObjectiveService assigns daily objectives and drives them through
// assigned -> completed -> redeemed.
type ObjectiveService struct {
	db     *gorm.DB
	policy RewardPolicy
	clock  Clock
}

// NewObjectiveService creates an ObjectiveService.
func NewObjectiveService(db *gorm.DB, policy RewardPolicy, clock Clock) *ObjectiveService {
	return &ObjectiveService{db: db, policy: policy, clock: clock}
}

// EnsureToday creates today's assignments on first access and returns them.
func (s *ObjectiveService) EnsureToday(ctx context.Context, userID uint) ([]models.ObjectiveAssignment, error) {
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Select("id").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	today := s.clock.Today(s.clock.Current())
	if err := ensureAssignments(db, userID, today); err != nil {
		utils.Logger.Error("ensure assignments failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}

	list := []models.ObjectiveAssignment{}
	err := db.Preload("Objective").
		Where("user_id = ? AND assignment_date = ?", userID, today).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

// Check completes a quantitative objective for today after evaluating its requirement.
func (s *ObjectiveService) Check(ctx context.Context, userID, objectiveID uint) (*CompletionResult, error) {
	now := s.clock.Current()
	today := s.clock.Today(now)

	var result *CompletionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		def, err := findDefinition(tx, objectiveID)
		if err != nil {
			return err
		}
		if def.Kind == models.ObjectiveQualitative {
			return ErrNotManuallyCompletable
		}
		if !def.Active {
			return ErrObjectiveInactive
		}

		assignment, err := lockAssignment(tx, userID, objectiveID, today)
		if err != nil {
			return err
		}
		if assignment.CompletedAt != nil {
			return ErrAlreadyCompleted
		}

		metrics, err := loadMetrics(tx, userID, today)
		if err != nil {
			return err
		}
		ok, err := canComplete(def, ruleInput{Metrics: metrics})
		if err != nil {
			return err
		}
		if !ok {
			return ErrRequirementNotMet
		}

		assignment.Objective = def
		result, err = s.markCompleted(tx, &user, &assignment, now)
		return err
	})
	if err != nil {
		s.logFailure("objective check failed", userID, objectiveID, err)
		return nil, err
	}
	utils.ObjectiveTransitions.WithLabelValues("completed").Inc()
	return result, nil
}

// CompleteQualitative marks today's first open qualitative assignment matching code as completed.
// It returns (nil, nil) when nothing matches.
func (s *ObjectiveService) CompleteQualitative(ctx context.Context, userID uint, code string) (*CompletionResult, error) {
	now := s.clock.Current()
	today := s.clock.Today(now)

	var result *CompletionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		if err := ensureAssignments(tx, userID, today); err != nil {
			return err
		}

		matching := tx.Model(&models.ObjectiveDefinition{}).
			Select("id").
			Where("kind = ? AND requirement = ? AND active = ?", models.ObjectiveQualitative, code, true)

		var assignment models.ObjectiveAssignment
		err = forUpdate(tx).
			Where("user_id = ? AND assignment_date = ? AND completed_at IS NULL", userID, today).
			Where("objective_id IN (?)", matching).
			Order("id ASC").
			First(&assignment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		def, err := findDefinition(tx, assignment.ObjectiveID)
		if err != nil {
			return err
		}
		ok, err := canComplete(def, ruleInput{EventCode: code})
		if err != nil || !ok {
			return err
		}

		assignment.Objective = def
		result, err = s.markCompleted(tx, &user, &assignment, now)
		return err
	})
	if err != nil {
		s.logFailure("qualitative completion failed", userID, 0, err)
		return nil, err
	}
	if result != nil {
		utils.ObjectiveTransitions.WithLabelValues("completed").Inc()
	}
	return result, nil
}

// Redeem credits the prize of a completed assignment exactly once.
func (s *ObjectiveService) Redeem(ctx context.Context, userID, objectiveID uint) (*RedeemResult, error) {
	now := s.clock.Current()
	today := s.clock.Today(now)

	var result *RedeemResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		def, err := findDefinition(tx, objectiveID)
		if err != nil {
			return err
		}

		assignment, err := lockAssignment(tx, userID, objectiveID, today)
		if err != nil {
			return err
		}
		if assignment.RedeemedAt != nil {
			return ErrAlreadyRedeemed
		}
		if assignment.CompletedAt == nil {
			return ErrNotCompleted
		}

		prize := def.Prize
		if s.policy.RedeemScaled {
			prize = s.policy.ScalePrize(def.Prize, s.policy.Multiplier(&user, now))
		}

		if err := tx.Model(&assignment).Update("redeemed_at", now).Error; err != nil {
			return err
		}
		assignment.RedeemedAt = &now
		assignment.Objective = def

		user.Coins += prize
		if err := saveUserCounters(tx, &user); err != nil {
			return err
		}

		result = &RedeemResult{Assignment: assignment, CoinsAwarded: prize, Coins: user.Coins}
		return nil
	})
	if err != nil {
		s.logFailure("objective redeem failed", userID, objectiveID, err)
		return nil, err
	}
	utils.ObjectiveTransitions.WithLabelValues("redeemed").Inc()
	utils.CoinsAwarded.WithLabelValues("objective").Add(float64(result.CoinsAwarded))
	return result, nil
}

// markCompleted stamps the assignment and bumps the streak once every
// assignment of the day is completed.
func (s *ObjectiveService) markCompleted(tx *gorm.DB, user *models.User, assignment *models.ObjectiveAssignment, now time.Time) (*CompletionResult, error) {
	if err := tx.Model(assignment).Update("completed_at", now).Error; err != nil {
		return nil, err
	}
	assignment.CompletedAt = &now

	var total, completed int64
	base := tx.Model(&models.ObjectiveAssignment{}).Where("user_id = ? AND assignment_date = ?", user.ID, assignment.AssignmentDate)
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("completed_at IS NOT NULL").Count(&completed).Error; err != nil {
		return nil, err
	}

	res := &CompletionResult{Assignment: *assignment}
	if total > 0 && completed == total {
		s.policy.DecayStreak(user, now)
		user.Streak++
		user.StreakUpdatedAt = &now
		if err := saveUserCounters(tx, user); err != nil {
			return nil, err
		}
		res.StreakIncremented = true
	}
	res.Streak = user.Streak
	return res, nil
}

func (s *ObjectiveService) logFailure(msg string, userID, objectiveID uint, err error) {
	if isClientError(err) {
		return
	}
	utils.Logger.Error(msg, zap.Uint("user_id", userID), zap.Uint("objective_id", objectiveID), zap.Error(err))
}

// ensureAssignments bulk-creates one assignment per active definition when
// the user has none for day. Concurrent first calls collide on the unique key
// and the losers insert nothing.
func ensureAssignments(db *gorm.DB, userID uint, day string) error {
	var count int64
	if err := db.Model(&models.ObjectiveAssignment{}).
		Where("user_id = ? AND assignment_date = ?", userID, day).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var defs []models.ObjectiveDefinition
	if err := db.Where("active = ?", true).Order("id ASC").Find(&defs).Error; err != nil {
		return err
	}
	if len(defs) == 0 {
		return nil
	}

	rows := make([]models.ObjectiveAssignment, 0, len(defs))
	for _, d := range defs {
		rows = append(rows, models.ObjectiveAssignment{UserID: userID, ObjectiveID: d.ID, AssignmentDate: day})
	}
	return db.Omit("Objective").Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func findDefinition(tx *gorm.DB, id uint) (models.ObjectiveDefinition, error) {
	var def models.ObjectiveDefinition
	if err := tx.First(&def, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return def, ErrObjectiveNotFound
		}
		return def, err
	}
	return def, nil
}

func lockAssignment(tx *gorm.DB, userID, objectiveID uint, day string) (models.ObjectiveAssignment, error) {
	var a models.ObjectiveAssignment
	err := forUpdate(tx).
		Where("user_id = ? AND objective_id = ? AND assignment_date = ?", userID, objectiveID, day).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return a, ErrAssignmentNotFound
	}
	return a, err
}
