package services

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/refit/refit-api/models"
)

// MetricSteps is the only quantitative metric tracked today.
const MetricSteps = "steps"

var knownMetrics = map[string]struct{}{
	MetricSteps: {},
}

// KnownMetric reports whether name can back a quantitative objective.
func KnownMetric(name string) bool {
	_, ok := knownMetrics[name]
	return ok
}

// ruleInput is what a completion rule may look at.
type ruleInput struct {
	Metrics   map[string]int64
	EventCode string
}

type completionRule func(def models.ObjectiveDefinition, in ruleInput) (bool, error)

// completionRules decides, per kind, whether an assignment can be marked completed.
var completionRules = map[models.ObjectiveKind]completionRule{
	models.ObjectiveQuantitative: func(def models.ObjectiveDefinition, in ruleInput) (bool, error) {
		value, ok := in.Metrics[def.Requirement]
		if !ok {
			return false, fmt.Errorf("%w: unknown metric %q", ErrInvalidObjective, def.Requirement)
		}
		return value >= def.RequiredValue, nil
	},
	models.ObjectiveQualitative: func(def models.ObjectiveDefinition, in ruleInput) (bool, error) {
		return in.EventCode != "" && in.EventCode == def.Requirement, nil
	},
}

func canComplete(def models.ObjectiveDefinition, in ruleInput) (bool, error) {
	rule, ok := completionRules[def.Kind]
	if !ok {
		return false, fmt.Errorf("%w: unknown kind %q", ErrInvalidObjective, def.Kind)
	}
	return rule(def, in)
}

// loadMetrics reads the current value of every known metric for (user, day).
func loadMetrics(tx *gorm.DB, userID uint, day string) (map[string]int64, error) {
	var steps int64
	if err := tx.Model(&models.StepRecord{}).
		Where("user_id = ? AND date = ?", userID, day).
		Select("COALESCE(SUM(steps),0)").
		Scan(&steps).Error; err != nil {
		return nil, err
	}
	return map[string]int64{MetricSteps: steps}, nil
}
