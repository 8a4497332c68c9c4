package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/refit/refit-api/models"
)

// newTestDB opens a private in-memory database. One connection keeps every
// query on the same memory database and serializes transactions.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.StepRecord{},
		&models.ObjectiveDefinition{},
		&models.ObjectiveAssignment{},
	))
	return db
}

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) clock() Clock {
	return Clock{Now: func() time.Time { return c.now }, Location: time.UTC}
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func (c *fakeClock) today() string {
	return c.now.UTC().Format(models.DateLayout)
}

func createUser(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	u := models.User{Username: name, Email: name + "@example.com", DailyGoal: 10000}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func createDefinition(t *testing.T, db *gorm.DB, def models.ObjectiveDefinition) models.ObjectiveDefinition {
	t.Helper()
	require.NoError(t, db.Create(&def).Error)
	return def
}

func stepsObjective(name string, required, prize int64) models.ObjectiveDefinition {
	return models.ObjectiveDefinition{
		Name:          name,
		Kind:          models.ObjectiveQuantitative,
		Requirement:   MetricSteps,
		RequiredValue: required,
		Prize:         prize,
		Active:        true,
	}
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, id).Error)
	return u
}
