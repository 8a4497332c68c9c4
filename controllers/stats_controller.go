package controllers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/refit/refit-api/models"
	"github.com/refit/refit-api/services"
	"github.com/refit/refit-api/utils"
)

// StatsController provides engine aggregates for today.
type StatsController struct {
	db    *gorm.DB
	clock services.Clock
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB, clock services.Clock) *StatsController {
	return &StatsController{db: db, clock: clock}
}

// GetStats returns user, step and objective counts for the current day.
func (s *StatsController) GetStats(ctx *gin.Context) {
	db := s.db.WithContext(ctx.Request.Context())
	today := s.clock.Today(s.clock.Current())

	var userCount, activeWalkers, stepsToday, coinsOutstanding int64
	var assigned, completed, redeemed int64

	// Individual failures fall back to 0 instead of failing the whole endpoint
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		userCount = 0
	}
	if err := db.Model(&models.User{}).Select("COALESCE(SUM(coins),0)").Scan(&coinsOutstanding).Error; err != nil {
		coinsOutstanding = 0
	}

	if err := db.Model(&models.StepRecord{}).
		Where("date = ? AND steps > 0", today).
		Count(&activeWalkers).Error; err != nil {
		activeWalkers = 0
	}
	if err := db.Model(&models.StepRecord{}).
		Where("date = ?", today).
		Select("COALESCE(SUM(steps),0)").
		Scan(&stepsToday).Error; err != nil {
		stepsToday = 0
	}

	todays := func() *gorm.DB {
		return db.Model(&models.ObjectiveAssignment{}).Where("assignment_date = ?", today)
	}
	if err := todays().Count(&assigned).Error; err != nil {
		assigned = 0
	}
	if err := todays().Where("completed_at IS NOT NULL").Count(&completed).Error; err != nil {
		completed = 0
	}
	if err := todays().Where("redeemed_at IS NOT NULL").Count(&redeemed).Error; err != nil {
		redeemed = 0
	}

	utils.Success(ctx, gin.H{
		"date":                 today,
		"user_count":           userCount,
		"active_walkers":       activeWalkers,
		"steps_today":          stepsToday,
		"coins_outstanding":    coinsOutstanding,
		"objectives_assigned":  assigned,
		"objectives_completed": completed,
		"objectives_redeemed":  redeemed,
	})
}
