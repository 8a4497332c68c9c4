package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/refit/refit-api/config"
	"github.com/refit/refit-api/models"
)

// RewardPolicy carries the reward parameters shared by the ledger and the objective engine.
type RewardPolicy struct {
	StepsPerCoin int64
	// MaxStepsPerEntry bounds the steps value of a single add or replace entry.
	MaxStepsPerEntry int64
	MultiplierStep   decimal.Decimal
	MaxMultiplier    decimal.Decimal
	StreakWindow     time.Duration
	// RedeemScaled multiplies objective prizes by the streak multiplier on redemption.
	RedeemScaled bool
}

// DefaultPolicy is 200 steps per coin, +0.1 per streak day, capped at 2x, 24h decay window.
func DefaultPolicy() RewardPolicy {
	return RewardPolicy{
		StepsPerCoin:     200,
		MaxStepsPerEntry: 200000,
		MultiplierStep:   decimal.NewFromFloat(0.1),
		MaxMultiplier:    decimal.NewFromInt(2),
		StreakWindow:     24 * time.Hour,
	}
}

// PolicyFromConfig builds the policy from the loaded configuration.
func PolicyFromConfig(cfg config.AppConfig) RewardPolicy {
	p := DefaultPolicy()
	if cfg.StepsPerCoin > 0 {
		p.StepsPerCoin = int64(cfg.StepsPerCoin)
	}
	if cfg.MaxStepsPerEntry > 0 {
		p.MaxStepsPerEntry = cfg.MaxStepsPerEntry
	}
	if cfg.MultiplierStep > 0 {
		p.MultiplierStep = decimal.NewFromFloat(cfg.MultiplierStep)
	}
	if cfg.MaxMultiplier >= 1 {
		p.MaxMultiplier = decimal.NewFromFloat(cfg.MaxMultiplier)
	}
	if cfg.StreakWindowHours > 0 {
		p.StreakWindow = cfg.StreakWindow()
	}
	p.RedeemScaled = cfg.RedeemScaledByMultiplier
	return p
}

// DecayStreak zeroes the user's streak when the last update is older than the window.
// It reports whether the user was modified; persisting is left to the caller.
func (p RewardPolicy) DecayStreak(user *models.User, now time.Time) bool {
	if user.StreakUpdatedAt == nil {
		return false
	}
	if now.Sub(*user.StreakUpdatedAt) < p.StreakWindow {
		return false
	}
	user.Streak = 0
	user.StreakUpdatedAt = nil
	return true
}

// Multiplier returns the coin multiplier for user at now, decaying the streak first.
// The result is always within [1, MaxMultiplier].
func (p RewardPolicy) Multiplier(user *models.User, now time.Time) decimal.Decimal {
	one := decimal.NewFromInt(1)
	p.DecayStreak(user, now)
	if user.StreakUpdatedAt == nil || user.Streak <= 0 {
		return one
	}
	m := one.Add(p.MultiplierStep.Mul(decimal.NewFromInt(int64(user.Streak))))
	if m.GreaterThan(p.MaxMultiplier) {
		return p.MaxMultiplier
	}
	return m
}

// CoinsForSteps converts newly credited steps into coins, flooring the result.
// Non-positive inputs earn nothing.
func (p RewardPolicy) CoinsForSteps(steps int64, multiplier decimal.Decimal) int64 {
	if steps <= 0 || p.StepsPerCoin <= 0 {
		return 0
	}
	return decimal.NewFromInt(steps).Mul(multiplier).Div(decimal.NewFromInt(p.StepsPerCoin)).Floor().IntPart()
}

// ScalePrize applies the multiplier to a prize when the policy asks for it.
func (p RewardPolicy) ScalePrize(prize int64, multiplier decimal.Decimal) int64 {
	if !p.RedeemScaled {
		return prize
	}
	return decimal.NewFromInt(prize).Mul(multiplier).Floor().IntPart()
}
