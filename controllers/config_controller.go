package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/refit/refit-api/services"
	"github.com/refit/refit-api/utils"
)

// ConfigController serves reward parameters so clients can explain earnings.
type ConfigController struct {
	policy   services.RewardPolicy
	timeZone string
}

func NewConfigController(policy services.RewardPolicy, timeZone string) *ConfigController {
	return &ConfigController{policy: policy, timeZone: timeZone}
}

// GetRewards returns the coin conversion and streak parameters.
func (c *ConfigController) GetRewards(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"steps_per_coin":              c.policy.StepsPerCoin,
		"max_steps_per_entry":         c.policy.MaxStepsPerEntry,
		"multiplier_step":             c.policy.MultiplierStep.InexactFloat64(),
		"max_multiplier":              c.policy.MaxMultiplier.InexactFloat64(),
		"streak_window_hours":         c.policy.StreakWindow.Hours(),
		"redeem_scaled_by_multiplier": c.policy.RedeemScaled,
		"time_zone":                   c.timeZone,
	})
}
