package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/refit/refit-api/models"
	"github.com/refit/refit-api/utils"
)

const (
	ActionAdd     = "add"
	ActionReplace = "replace"
)

// StepEntry is one element of a batched step update.
type StepEntry struct {
	Action string `json:"action"`
	Steps  int64  `json:"steps"`
	Date   string `json:"date"`
}

// StepSummary is the step payload shared by the read and write paths.
type StepSummary struct {
	StepsToday   int64   `json:"stepsToday"`
	TotalSteps   int64   `json:"totalSteps"`
	MonthlySteps int64   `json:"monthlySteps"`
	Coins        int64   `json:"coins"`
	DailyGoal    int     `json:"dailyGoal"`
	Streak       int     `json:"streak"`
	Multiplier   float64 `json:"multiplier"`
	CoinsEarned  int64   `json:"coinsEarned,omitempty"`
}

// StepService owns the step ledger and the coin accrual that follows it.
type StepService struct {
	db     *gorm.DB
	policy RewardPolicy
	clock  Clock
}

// NewStepService creates a StepService.
func NewStepService(db *gorm.DB, policy RewardPolicy, clock Clock) *StepService {
	return &StepService{db: db, policy: policy, clock: clock}
}

// AddToday adds steps to today's record.
func (s *StepService) AddToday(ctx context.Context, userID uint, steps int64) (*StepSummary, error) {
	today := s.clock.Today(s.clock.Current())
	return s.ApplyBatch(ctx, userID, []StepEntry{{Action: ActionAdd, Steps: steps, Date: today}})
}

// ApplyBatch applies add/replace entries atomically. Only today's record earns
// coins, and only for steps above the count already credited for the day.
// Other dates adjust totalSteps only.
func (s *StepService) ApplyBatch(ctx context.Context, userID uint, entries []StepEntry) (*StepSummary, error) {
	now := s.clock.Current()
	today := s.clock.Today(now)

	if err := validateBatch(entries, today, s.policy.MaxStepsPerEntry); err != nil {
		return nil, err
	}

	var summary *StepSummary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		multiplier := s.policy.Multiplier(&user, now)

		records, err := lockStepRecords(tx, userID, entries)
		if err != nil {
			return err
		}

		var totalDelta int64
		for _, e := range entries {
			rec := records[e.Date]
			delta := e.Steps
			if e.Action == ActionReplace {
				delta = e.Steps - rec.Steps
			}
			if rec.Steps, err = addSteps(rec.Steps, delta); err != nil {
				return err
			}
			if totalDelta, err = addSteps(totalDelta, delta); err != nil {
				return err
			}
		}
		if user.TotalSteps, err = addSteps(user.TotalSteps, totalDelta); err != nil {
			return err
		}

		var earned int64
		if rec, ok := records[today]; ok && rec.Steps > rec.CreditedSteps {
			earned = s.policy.CoinsForSteps(rec.Steps-rec.CreditedSteps, multiplier)
			rec.CreditedSteps = rec.Steps
		}

		for _, rec := range records {
			if err := tx.Model(&models.StepRecord{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
				"steps":          rec.Steps,
				"credited_steps": rec.CreditedSteps,
			}).Error; err != nil {
				return err
			}
		}

		user.Coins += earned
		user.LastSync = &now
		if err := saveUserCounters(tx, &user); err != nil {
			return err
		}

		summary, err = s.summarize(tx, user, now)
		if err != nil {
			return err
		}
		summary.CoinsEarned = earned
		return nil
	})
	if err != nil {
		if !isClientError(err) {
			utils.Logger.Error("step batch failed", zap.Uint("user_id", userID), zap.Int("entries", len(entries)), zap.Error(err))
		}
		return nil, err
	}

	for _, e := range entries {
		utils.StepsIngested.WithLabelValues(e.Action).Add(float64(e.Steps))
	}
	if summary.CoinsEarned > 0 {
		utils.CoinsAwarded.WithLabelValues("steps").Add(float64(summary.CoinsEarned))
	}
	return summary, nil
}

// Summary returns the user's step counters without modifying anything.
func (s *StepService) Summary(ctx context.Context, userID uint) (*StepSummary, error) {
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.summarize(db, user, s.clock.Current())
}

// History lists the user's records between start and end inclusive. Empty bounds default to today.
func (s *StepService) History(ctx context.Context, userID uint, start, end string) ([]models.StepRecord, error) {
	today := s.clock.Today(s.clock.Current())
	if start == "" {
		start = today
	}
	if end == "" {
		end = today
	}
	if _, err := parseDay(start); err != nil {
		return nil, err
	}
	if _, err := parseDay(end); err != nil {
		return nil, err
	}
	if start > end {
		return nil, ErrInvalidDateRange
	}

	records := []models.StepRecord{}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, start, end).
		Order("date ASC").
		Find(&records).Error
	return records, err
}

func (s *StepService) summarize(db *gorm.DB, user models.User, now time.Time) (*StepSummary, error) {
	today := s.clock.Today(now)

	var stepsToday int64
	if err := db.Model(&models.StepRecord{}).
		Where("user_id = ? AND date = ?", user.ID, today).
		Select("COALESCE(SUM(steps),0)").
		Scan(&stepsToday).Error; err != nil {
		return nil, err
	}

	var monthly int64
	if err := db.Model(&models.StepRecord{}).
		Where("user_id = ? AND date >= ? AND date <= ?", user.ID, s.clock.MonthStart(now), today).
		Select("COALESCE(SUM(steps),0)").
		Scan(&monthly).Error; err != nil {
		return nil, err
	}

	// user is a copy; decay here is never persisted
	m := s.policy.Multiplier(&user, now)
	return &StepSummary{
		StepsToday:   stepsToday,
		TotalSteps:   user.TotalSteps,
		MonthlySteps: monthly,
		Coins:        user.Coins,
		DailyGoal:    user.DailyGoal,
		Streak:       user.Streak,
		Multiplier:   m.InexactFloat64(),
	}, nil
}

// validateBatch rejects the whole batch on the first bad entry.
func validateBatch(entries []StepEntry, today string, maxSteps int64) error {
	if len(entries) == 0 {
		return ErrEmptyBatch
	}
	for i, e := range entries {
		if e.Action != ActionAdd && e.Action != ActionReplace {
			return fmt.Errorf("entry %d: %w", i, ErrUnknownAction)
		}
		if e.Steps < 0 {
			return fmt.Errorf("entry %d: %w", i, ErrInvalidSteps)
		}
		if maxSteps > 0 && e.Steps > maxSteps {
			return fmt.Errorf("entry %d: %w: at most %d per entry", i, ErrInvalidSteps, maxSteps)
		}
		if _, err := parseDay(e.Date); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Date > today {
			return fmt.Errorf("entry %d: %w", i, ErrFutureDate)
		}
	}
	return nil
}

// addSteps adds b to a and fails instead of wrapping around.
func addSteps(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("%w: step count out of range", ErrInvalidSteps)
	}
	return a + b, nil
}

// lockStepRecords materializes and locks one record per distinct date, in date order.
func lockStepRecords(tx *gorm.DB, userID uint, entries []StepEntry) (map[string]*models.StepRecord, error) {
	dates := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Date]; ok {
			continue
		}
		seen[e.Date] = struct{}{}
		dates = append(dates, e.Date)
	}
	sort.Strings(dates)

	records := make(map[string]*models.StepRecord, len(dates))
	for _, day := range dates {
		seed := models.StepRecord{UserID: userID, Date: day}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return nil, err
		}
		var rec models.StepRecord
		if err := forUpdate(tx).Where("user_id = ? AND date = ?", userID, day).First(&rec).Error; err != nil {
			return nil, err
		}
		records[day] = &rec
	}
	return records, nil
}
