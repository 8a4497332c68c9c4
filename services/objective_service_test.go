package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refit/refit-api/models"
)

type engine struct {
	steps      *StepService
	objectives *ObjectiveService
	clock      *fakeClock
}

func newEngine(t *testing.T, policy RewardPolicy) (*engine, context.Context) {
	t.Helper()
	db := newTestDB(t)
	fc := newFakeClock()
	return &engine{
		steps:      NewStepService(db, policy, fc.clock()),
		objectives: NewObjectiveService(db, policy, fc.clock()),
		clock:      fc,
	}, context.Background()
}

func TestEnsureTodayIsIdempotent(t *testing.T) {
	e, ctx := newEngine(t, DefaultPolicy())
	db := e.objectives.db
	user := createUser(t, db, "lazy")
	createDefinition(t, db, stepsObjective("Walk 5k", 5000, 10))
	createDefinition(t, db, models.ObjectiveDefinition{Name: "Log in", Kind: models.ObjectiveQualitative, Requirement: "login", Prize: 5, Active: true})
	createDefinition(t, db, models.ObjectiveDefinition{Name: "Retired", Kind: models.ObjectiveQuantitative, Requirement: MetricSteps, RequiredValue: 1, Prize: 1, Active: false})

	first, err := e.objectives.EnsureToday(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "Walk 5k", first[0].Objective.Name)
	assert.Equal(t, models.StateAssigned, first[0].State())

	second, err := e.objectives.EnsureToday(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[0].ID)

	var count int64
	require.NoError(t, db.Model(&models.ObjectiveAssignment{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	e.clock.advance(24 * time.Hour)
	next, err := e.objectives.EnsureToday(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, e.clock.today(), next[0].AssignmentDate)
	assert.NotEqual(t, first[0].ID, next[0].ID)
}

func TestEnsureTodayDoesNotBackfillNewDefinitions(t *testing.T) {
	e, ctx := newEngine(t, DefaultPolicy())
	db := e.objectives.db
	user := createUser(t, db, "early")
	createDefinition(t, db, stepsObjective("Walk 1k", 1000, 1))

	_, err := e.objectives.EnsureToday(ctx, user.ID)
	require.NoError(t, err)

	createDefinition(t, db, stepsObjective("Walk 2k", 2000, 2))
	list, err := e.objectives.EnsureToday(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEnsureTodayUnknownUser(t *testing.T) {
	e, ctx := newEngine(t, DefaultPolicy())
	_, err := e.objectives.EnsureToday(ctx, 99)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStreakIncrementsAfterAllCompleted(t *testing.T) {
	e, ctx := newEngine(t, DefaultPolicy())
	db := e.objectives.db
	user := createUser(t, db, "finisher")
	defs := []models.ObjectiveDefinition{
		createDefinition(t, db, stepsObjective("Walk 1k", 1000, 5)),
		createDefinition(t, db, stepsObjective("Walk 2k", 2000, 10)),
		createDefinition(t, db, stepsObjective("Walk 3k", 3000, 15)),
	}

	_, err := e.objectives.EnsureToday(ctx, user.ID)
	require.NoError(t, err)
	_, err = e.steps.AddToday(ctx, user.ID, 3000)
	require.NoError(t, err)

	res, err := e.objectives.Check(ctx, user.ID, defs[0].ID)
	require.NoError(t, err)
	assert.False(t, res.StreakIncremented)
	assert.Equal(t, models.StateCompleted, res.Assignment.State())
	assert.Equal(t, 0, reloadUser(t, db, user.ID).Streak)

	res, err = e.objectives.Check(ctx, user.ID, defs[1].ID)
	require.NoError(t, err)
	assert.False(t, res.StreakIncremented)

	res, err = e.objectives.Check(ctx, user.ID, defs[2].ID)
	require.NoError(t, err)
	assert.True(t, res.StreakIncremented)
	assert.Equal(t, 1, res.Streak)

	stored := reloadUser(t, db, user.ID)
	assert.Equal(t, 1, stored.Streak)
	require.NotNil(t, stored.StreakUpdatedAt)
	assert.WithinDuration(t, e.clock.now, *stored.StreakUpdatedAt, time.Second)

	_, err = e.objectives.Check(ctx, user.ID, defs[2].ID)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, 1, reloadUser(t, db, user.ID).Streak)
}

func TestRequirementBoundary(t *testing.T) {
	e, ctx := newEngine(t, DefaultPolicy())
	db := e.objectives.db
	user := createUser(t, db, "almost")
	def := createDefinition(t, db, stepsObjective("Walk 10k", 10000, 50))

	_, err := e.objectives.EnsureToday(ctx, user.ID)
	require.NoError(t, err)
	_, err = e.steps.AddToday(ctx, user.ID, 9999)
	require.NoError(t, err)

	_, err = e.objectives.Check(ctx, user.ID, def.ID)
	assert.ErrorIs(t, err, ErrRequirementNotMet)

	_, err = e.steps.AddToday(ctx, user.ID, 1)
	require.NoError(t, err)

	res, err := e.objectives.Check(ctx, user.ID, def.ID)
	require.NoError(t, err)
	assert.NotNil(t, res.Assignment.CompletedAt)
}

func TestYesterdayStepsDoNotCount(t *testing.T) {
	e, ctx := newEngine(t, DefaultPolicy())
	db := e.objectives.db
	user := createUser(t, db, "yesterday")
	def := createDefinition(t, db, stepsObjective("Walk 1k", 1000, 5))
	yesterday := e.clock.now.AddDate(0, 0, -1).Format(models.DateLayout)

	_, err := e.objectives.EnsureToday(ctx, user.ID)
	require.NoError(t, err)
	_, err = e.steps.ApplyBatch(ctx, user.ID, []StepEntry{{Action: ActionAdd, Steps: 5000, Date: yesterday}})
	require.NoError(t, err)

	_, err = e.objectives.Check(ctx, user.ID, def.ID)
	assert.ErrorIs(t, err, ErrRequirementNotMet)
}

func TestCheckPreconditions(t *testing.T) {
	e, ctx := newEngine(t, DefaultPolicy())
	db := e.objectives.db
	user := createUser(t, db, "checker")
	qual := createDefinition(t, db, models.ObjectiveDefinition{Name: "Log in", Kind: models.ObjectiveQualitative, Requirement: "login", Prize: 5, Active: true})
	inactive := createDefinition(t, db, models.ObjectiveDefinition{Name: "Old", Kind: models.ObjectiveQuantitative, Requirement: MetricSteps, RequiredValue: 1, Prize: 1, Active: false})

	_, err := e.objectives.Check(ctx, user.ID, 12345)
	assert.ErrorIs(t, err, ErrObjectiveNotFound)

	_, err = e.objectives.Check(ctx, user.ID, qual.ID)
	assert.ErrorIs(t, err, ErrNotManuallyCompletable)

	_, err = e.objectives.Check(ctx, user.ID, inactive.ID)
	assert.ErrorIs(t, err, ErrObjectiveInactive)

	// assignments were never listed today
	walk := createDefinition(t, db, stepsObjective("Walk", 10, 1))
	_, err = e.objectives.Check(ctx, user.ID, walk.ID)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestRedeemSequence(t *testing.T) {
	e, ctx := newEngine(t, DefaultPolicy())
	db := e.objectives.db
	user := createUser(t, db, "redeemer")
	def := createDefinition(t, db, stepsObjective("Walk 1k", 1000, 25))

	_, err := e.objectives.EnsureToday(ctx, user.ID)
	require.NoError(t, err)

	_, err = e.objectives.Redeem(ctx, user.ID, def.ID)
	assert.ErrorIs(t, err, ErrNotCompleted)

	_, err = e.steps.AddToday(ctx, user.ID, 1000)
	require.NoError(t, err)
	_, err = e.objectives.Check(ctx, user.ID, def.ID)
	require.NoError(t, err)

	before := reloadUser(t, db, user.ID).Coins
	res, err := e.objectives.Redeem(ctx, user.ID, def.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.CoinsAwarded)
	assert.Equal(t, before+25, res.Coins)
	assert.Equal(t, models.StateRedeemed, res.Assignment.State())

	_, err = e.objectives.Redeem(ctx, user.ID, def.ID)
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)
	assert.Equal(t, before+25, reloadUser(t, db, user.ID).Coins)

	var a models.ObjectiveAssignment
	require.NoError(t, db.Where("user_id = ? AND objective_id = ?", user.ID, def.ID).First(&a).Error)
	require.NotNil(t, a.RedeemedAt)
	require.NotNil(t, a.CompletedAt)
}

func TestRedeemScaledByMultiplier(t *testing.T) {
	policy := DefaultPolicy()
	policy.RedeemScaled = true
	e, ctx := newEngine(t, policy)
	db := e.objectives.db
	user := createUser(t, db, "scaled")
	def := createDefinition(t, db, stepsObjective("Walk 1k", 1000, 25))

	updated := e.clock.now.Add(-time.Hour)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{"streak": 5, "streak_updated_at": updated}).Error)

	_, err := e.objectives.EnsureToday(ctx, user.ID)
	require.NoError(t, err)
	_, err = e.steps.AddToday(ctx, user.ID, 1000)
	require.NoError(t, err)
	res, err := e.objectives.Check(ctx, user.ID, def.ID)
	require.NoError(t, err)
	// the only objective was completed, so the streak moved to 6
	assert.Equal(t, 6, res.Streak)

	redeemed, err := e.objectives.Redeem(ctx, user.ID, def.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), redeemed.CoinsAwarded)
}

func TestCompleteQualitative(t *testing.T) {
	e, ctx := newEngine(t, DefaultPolicy())
	db := e.objectives.db
	user := createUser(t, db, "visitor")
	login := createDefinition(t, db, models.ObjectiveDefinition{Name: "Log in", Kind: models.ObjectiveQualitative, Requirement: "login", Prize: 5, Active: true})
	createDefinition(t, db, stepsObjective("Walk 1k", 1000, 5))

	res, err := e.objectives.CompleteQualitative(ctx, user.ID, "share")
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = e.objectives.CompleteQualitative(ctx, user.ID, "login")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, login.ID, res.Assignment.ObjectiveID)
	assert.False(t, res.StreakIncremented)

	res, err = e.objectives.CompleteQualitative(ctx, user.ID, "login")
	require.NoError(t, err)
	assert.Nil(t, res)

	list, err := e.objectives.EnsureToday(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	redeemed, err := e.objectives.Redeem(ctx, user.ID, login.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), redeemed.CoinsAwarded)
}

func TestCompleteQualitativeLastObjectiveIncrementsStreak(t *testing.T) {
	e, ctx := newEngine(t, DefaultPolicy())
	db := e.objectives.db
	user := createUser(t, db, "finisher")
	walk := createDefinition(t, db, stepsObjective("Walk 1k", 1000, 5))
	createDefinition(t, db, models.ObjectiveDefinition{Name: "Log in", Kind: models.ObjectiveQualitative, Requirement: "login", Prize: 5, Active: true})

	_, err := e.objectives.EnsureToday(ctx, user.ID)
	require.NoError(t, err)
	_, err = e.steps.AddToday(ctx, user.ID, 1000)
	require.NoError(t, err)
	checked, err := e.objectives.Check(ctx, user.ID, walk.ID)
	require.NoError(t, err)
	assert.False(t, checked.StreakIncremented)

	res, err := e.objectives.CompleteQualitative(ctx, user.ID, "login")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.StreakIncremented)
	assert.Equal(t, 1, res.Streak)

	stored := reloadUser(t, db, user.ID)
	assert.Equal(t, 1, stored.Streak)
	require.NotNil(t, stored.StreakUpdatedAt)
	assert.WithinDuration(t, e.clock.now, *stored.StreakUpdatedAt, time.Second)
}

func TestCompleteQualitativeUnknownUser(t *testing.T) {
	e, ctx := newEngine(t, DefaultPolicy())
	_, err := e.objectives.CompleteQualitative(ctx, 77, "login")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStreakAcrossDays(t *testing.T) {
	e, ctx := newEngine(t, DefaultPolicy())
	db := e.objectives.db
	user := createUser(t, db, "daily")
	def := createDefinition(t, db, stepsObjective("Walk 1k", 1000, 5))

	completeDay := func() *CompletionResult {
		_, err := e.objectives.EnsureToday(ctx, user.ID)
		require.NoError(t, err)
		_, err = e.steps.AddToday(ctx, user.ID, 1000)
		require.NoError(t, err)
		res, err := e.objectives.Check(ctx, user.ID, def.ID)
		require.NoError(t, err)
		return res
	}

	assert.Equal(t, 1, completeDay().Streak)
	e.clock.advance(23 * time.Hour)
	assert.Equal(t, 2, completeDay().Streak)

	// a full silent day resets before the increment
	e.clock.advance(48 * time.Hour)
	assert.Equal(t, 1, completeDay().Streak)
}

func TestRedeemedImpliesCompleted(t *testing.T) {
	e, ctx := newEngine(t, DefaultPolicy())
	db := e.objectives.db
	user := createUser(t, db, "invariant")
	defs := []models.ObjectiveDefinition{
		createDefinition(t, db, stepsObjective("A", 100, 1)),
		createDefinition(t, db, stepsObjective("B", 100000, 1)),
	}
	_, err := e.objectives.EnsureToday(ctx, user.ID)
	require.NoError(t, err)
	_, err = e.steps.AddToday(ctx, user.ID, 500)
	require.NoError(t, err)

	for _, d := range defs {
		_, _ = e.objectives.Check(ctx, user.ID, d.ID)
		_, _ = e.objectives.Redeem(ctx, user.ID, d.ID)
	}

	var broken int64
	require.NoError(t, db.Model(&models.ObjectiveAssignment{}).
		Where("redeemed_at IS NOT NULL AND completed_at IS NULL").Count(&broken).Error)
	assert.Zero(t, broken)
}
