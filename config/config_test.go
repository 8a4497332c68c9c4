package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var c AppConfig
	applyDefaults(&c)

	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, "mysql", c.DBDriver)
	assert.Equal(t, "3306", c.DBPort)
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
	assert.Equal(t, 200, c.StepsPerCoin)
	assert.Equal(t, int64(200000), c.MaxStepsPerEntry)
	assert.Equal(t, 0.1, c.MultiplierStep)
	assert.Equal(t, 2.0, c.MaxMultiplier)
	assert.Equal(t, 24*time.Hour, c.StreakWindow())
	assert.Equal(t, "America/Montevideo", c.TimeZone)
	assert.False(t, c.RedeemScaledByMultiplier)
	assert.Empty(t, c.AuditSchedule)

	pg := AppConfig{DBDriver: "postgres"}
	applyDefaults(&pg)
	assert.Equal(t, "5432", pg.DBPort)
}

func TestLoadJSONConfig(t *testing.T) {
	raw := map[string]any{
		"app": map[string]any{
			"AppPort":        "9090",
			"JWTSecret":      "from-json",
			"AdminUsernames": []any{"root", "ops"},
		},
		"database": map[string]any{"Driver": "postgres", "DBName": "steps"},
		"rewards": map[string]any{
			"TimeZone":                 "UTC",
			"StepsPerCoin":             100,
			"MaxMultiplier":            3.5,
			"RedeemScaledByMultiplier": true,
		},
		"audit": map[string]any{"Schedule": "@daily", "AutoFix": true},
	}
	b, err := json.Marshal(raw)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, b, 0o600))

	var c AppConfig
	require.NoError(t, loadJSONConfig(path, &c))
	applyDefaults(&c)

	assert.Equal(t, "9090", c.AppPort)
	assert.Equal(t, "from-json", c.JWTSecret)
	assert.Equal(t, []string{"root", "ops"}, c.AdminUsernames)
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, "5432", c.DBPort)
	assert.Equal(t, "steps", c.DBName)
	assert.Equal(t, 100, c.StepsPerCoin)
	assert.Equal(t, 3.5, c.MaxMultiplier)
	assert.Equal(t, 0.1, c.MultiplierStep)
	assert.True(t, c.RedeemScaledByMultiplier)
	assert.Equal(t, "@daily", c.AuditSchedule)
	assert.True(t, c.AuditAutoFix)
	assert.Equal(t, time.UTC, c.Location())
}

func TestLoadJSONConfigMissingAndInvalid(t *testing.T) {
	var c AppConfig
	assert.NoError(t, loadJSONConfig(filepath.Join(t.TempDir(), "absent.json"), &c))

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	assert.Error(t, loadJSONConfig(path, &c))
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "7070")
	t.Setenv("ADMIN_USERNAMES", "alice, bob ,,")
	t.Setenv("STEPS_PER_COIN", "50")
	t.Setenv("MAX_STEPS_PER_ENTRY", "50000")
	t.Setenv("MULTIPLIER_STEP", "0.25")
	t.Setenv("STREAK_WINDOW_HOURS", "36")
	t.Setenv("REDEEM_SCALED_BY_MULTIPLIER", "true")
	t.Setenv("TIME_ZONE", "Europe/Madrid")

	c := AppConfig{AppPort: "8080", StepsPerCoin: 200}
	applyEnvOverrides(&c)

	assert.Equal(t, "7070", c.AppPort)
	assert.Equal(t, []string{"alice", "bob"}, c.AdminUsernames)
	assert.Equal(t, 50, c.StepsPerCoin)
	assert.Equal(t, int64(50000), c.MaxStepsPerEntry)
	assert.Equal(t, 0.25, c.MultiplierStep)
	assert.Equal(t, 36*time.Hour, c.StreakWindow())
	assert.True(t, c.RedeemScaledByMultiplier)
	assert.Equal(t, "Europe/Madrid", c.TimeZone)
}

func TestLocationFallbacks(t *testing.T) {
	assert.Equal(t, time.Local, AppConfig{}.Location())
	assert.Equal(t, time.Local, AppConfig{TimeZone: "Local"}.Location())
	assert.Equal(t, time.UTC, AppConfig{TimeZone: "Nowhere/Atlantis"}.Location())
}
