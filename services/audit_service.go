package services

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/refit/refit-api/models"
	"github.com/refit/refit-api/utils"
)

// AuditReport compares the denormalized user counters with the ledger.
type AuditReport struct {
	UserID              uint     `json:"user_id"`
	StoredTotalSteps    int64    `json:"stored_total_steps"`
	LedgerTotalSteps    int64    `json:"ledger_total_steps"`
	RedeemedPrizeTotal  int64    `json:"redeemed_prize_total"`
	RedeemedNotComplete int64    `json:"redeemed_not_completed"`
	NegativeRecords     int64    `json:"negative_records"`
	Violations          []string `json:"violations"`
	Fixed               bool     `json:"fixed"`
}

// Consistent reports whether no violation was found.
func (r AuditReport) Consistent() bool {
	return len(r.Violations) == 0
}

// AuditService recomputes counters from history for integrity checks.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService creates an AuditService.
func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Reconcile audits one user. With fix set, totalSteps is rewritten from the ledger.
func (s *AuditService) Reconcile(ctx context.Context, userID uint, fix bool) (*AuditReport, error) {
	var report *AuditReport
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		var err error
		if fix {
			user, err = lockUser(tx, userID)
		} else if err = tx.First(&user, userID).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrUserNotFound
		}
		if err != nil {
			return err
		}

		report, err = audit(tx, user)
		if err != nil {
			return err
		}

		if fix && report.StoredTotalSteps != report.LedgerTotalSteps {
			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
				Update("total_steps", report.LedgerTotalSteps).Error; err != nil {
				return err
			}
			report.Fixed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Consistent() {
		utils.AuditDrift.Inc()
		utils.Logger.Warn("counter audit found drift",
			zap.Uint("user_id", userID),
			zap.Strings("violations", report.Violations),
			zap.Bool("fixed", report.Fixed),
		)
	}
	return report, nil
}

// ReconcileAll audits every user in batches and returns the inconsistent reports.
func (s *AuditService) ReconcileAll(ctx context.Context, fix bool) ([]AuditReport, error) {
	var ids []uint
	var users []models.User
	res := s.db.WithContext(ctx).Select("id").FindInBatches(&users, 200, func(tx *gorm.DB, batch int) error {
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		return nil
	})
	if res.Error != nil {
		return nil, res.Error
	}

	reports := []AuditReport{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		r, err := s.Reconcile(ctx, id, fix)
		if err != nil {
			return reports, err
		}
		if !r.Consistent() {
			reports = append(reports, *r)
		}
	}
	return reports, nil
}

func audit(tx *gorm.DB, user models.User) (*AuditReport, error) {
	r := &AuditReport{UserID: user.ID, StoredTotalSteps: user.TotalSteps, Violations: []string{}}

	if err := tx.Model(&models.StepRecord{}).
		Where("user_id = ?", user.ID).
		Select("COALESCE(SUM(steps),0)").
		Scan(&r.LedgerTotalSteps).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.StepRecord{}).
		Where("user_id = ? AND steps < 0", user.ID).
		Count(&r.NegativeRecords).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.ObjectiveAssignment{}).
		Where("user_id = ? AND redeemed_at IS NOT NULL AND completed_at IS NULL", user.ID).
		Count(&r.RedeemedNotComplete).Error; err != nil {
		return nil, err
	}
	if err := tx.Table("objective_assignments").
		Joins("JOIN objective_definitions ON objective_definitions.id = objective_assignments.objective_id").
		Where("objective_assignments.user_id = ? AND objective_assignments.redeemed_at IS NOT NULL", user.ID).
		Select("COALESCE(SUM(objective_definitions.prize),0)").
		Scan(&r.RedeemedPrizeTotal).Error; err != nil {
		return nil, err
	}

	if r.StoredTotalSteps != r.LedgerTotalSteps {
		r.Violations = append(r.Violations, "total_steps differs from ledger sum")
	}
	if r.NegativeRecords > 0 {
		r.Violations = append(r.Violations, "negative step records")
	}
	if r.RedeemedNotComplete > 0 {
		r.Violations = append(r.Violations, "redeemed assignments without completion")
	}
	if user.Coins < 0 {
		r.Violations = append(r.Violations, "negative coin balance")
	}
	return r, nil
}
