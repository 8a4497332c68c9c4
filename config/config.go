package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	InternalToken      string
	RateLimitPerMinute int
	AllowedOrigins     []string
	AdminUsernames     []string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Redis for caching and token revocation
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Rewards
	TimeZone                 string
	StepsPerCoin             int
	MaxStepsPerEntry         int64
	MultiplierStep           float64
	MaxMultiplier            float64
	StreakWindowHours        int
	RedeemScaledByMultiplier bool
	// Metrics endpoint basic auth; empty user disables the endpoint
	MetricsUser     string
	MetricsPassword string
	// Counter audit job; empty schedule disables it
	AuditSchedule string
	AuditAutoFix  bool
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> defaults -> .env -> environment variable overrides
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Printf("invalid config/config.json, ignoring: %v", err)
	}

	applyDefaults(&cfg)

	// .env is optional; real environment variables still win because godotenv never overwrites them
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Location resolves the configured time zone used to decide what "today" is.
func (c AppConfig) Location() *time.Location {
	if c.TimeZone == "" || strings.EqualFold(c.TimeZone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		log.Printf("unknown time zone %q, falling back to UTC: %v", c.TimeZone, err)
		return time.UTC
	}
	return loc
}

// StreakWindow is the inactivity period after which a streak decays.
func (c AppConfig) StreakWindow() time.Duration {
	return time.Duration(c.StreakWindowHours) * time.Hour
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// fileConfig mirrors the grouped layout of config/config.json.
type fileConfig struct {
	App struct {
		AppPort            string
		JWTSecret          string
		InternalToken      string
		RateLimitPerMinute int
		AllowedOrigins     []string
		AdminUsernames     []string
	} `json:"app"`
	Database struct {
		Driver      string
		DatabaseURI string
		DBHost      string
		DBPort      string
		DBUser      string
		DBPassword  string
		DBName      string
	} `json:"database"`
	Redis struct {
		RedisHost     string
		RedisPort     int
		RedisDB       int
		RedisPassword string
	} `json:"redis"`
	Log struct {
		Level      string
		Path       string
		GinMode    string
		GinPath    string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
	} `json:"log"`
	Rewards struct {
		TimeZone                 string
		StepsPerCoin             int
		MaxStepsPerEntry         int64
		MultiplierStep           float64
		MaxMultiplier            float64
		StreakWindowHours        int
		RedeemScaledByMultiplier bool
	} `json:"rewards"`
	Metrics struct {
		User     string
		Password string
	} `json:"metrics"`
	Audit struct {
		Schedule string
		AutoFix  bool
	} `json:"audit"`
}

// loadJSONConfig reads path into out if present. Only malformed JSON is an error.
func loadJSONConfig(path string, out *AppConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var fc fileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return err
	}
	fc.apply(out)
	return nil
}

// apply copies the file values; zero values are left for applyDefaults.
func (fc fileConfig) apply(out *AppConfig) {
	out.AppPort = fc.App.AppPort
	out.JWTSecret = fc.App.JWTSecret
	out.InternalToken = fc.App.InternalToken
	out.RateLimitPerMinute = fc.App.RateLimitPerMinute
	out.AllowedOrigins = fc.App.AllowedOrigins
	out.AdminUsernames = fc.App.AdminUsernames

	out.DBDriver = fc.Database.Driver
	out.DatabaseURI = fc.Database.DatabaseURI
	out.DBHost = fc.Database.DBHost
	out.DBPort = fc.Database.DBPort
	out.DBUser = fc.Database.DBUser
	out.DBPassword = fc.Database.DBPassword
	out.DBName = fc.Database.DBName

	out.RedisHost = fc.Redis.RedisHost
	out.RedisPort = fc.Redis.RedisPort
	out.RedisDB = fc.Redis.RedisDB
	out.RedisPassword = fc.Redis.RedisPassword

	out.LogLevel = fc.Log.Level
	out.LogPath = fc.Log.Path
	out.GinMode = fc.Log.GinMode
	out.GinPath = fc.Log.GinPath
	out.LogMaxSizeMB = fc.Log.MaxSizeMB
	out.LogMaxBackups = fc.Log.MaxBackups
	out.LogMaxAgeDays = fc.Log.MaxAgeDays
	out.LogCompress = fc.Log.Compress

	out.TimeZone = fc.Rewards.TimeZone
	out.StepsPerCoin = fc.Rewards.StepsPerCoin
	out.MaxStepsPerEntry = fc.Rewards.MaxStepsPerEntry
	out.MultiplierStep = fc.Rewards.MultiplierStep
	out.MaxMultiplier = fc.Rewards.MaxMultiplier
	out.StreakWindowHours = fc.Rewards.StreakWindowHours
	out.RedeemScaledByMultiplier = fc.Rewards.RedeemScaledByMultiplier

	out.MetricsUser = fc.Metrics.User
	out.MetricsPassword = fc.Metrics.Password
	out.AuditSchedule = fc.Audit.Schedule
	out.AuditAutoFix = fc.Audit.AutoFix
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 120
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		if c.DBDriver == "postgres" {
			c.DBPort = "5432"
		} else {
			c.DBPort = "3306"
		}
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "refit"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.TimeZone == "" {
		c.TimeZone = "America/Montevideo"
	}
	if c.StepsPerCoin == 0 {
		c.StepsPerCoin = 200
	}
	if c.MaxStepsPerEntry == 0 {
		c.MaxStepsPerEntry = 200000
	}
	if c.MultiplierStep == 0 {
		c.MultiplierStep = 0.1
	}
	if c.MaxMultiplier == 0 {
		c.MaxMultiplier = 2.0
	}
	if c.StreakWindowHours == 0 {
		c.StreakWindowHours = 24
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("INTERNAL_TOKEN", ""); v != "" {
		c.InternalToken = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnv("ADMIN_USERNAMES", ""); v != "" {
		c.AdminUsernames = splitAndTrim(v)
	}
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.DBDriver = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("TIME_ZONE", ""); v != "" {
		c.TimeZone = v
	}
	if v := getEnv("STEPS_PER_COIN", ""); v != "" {
		c.StepsPerCoin = mustParseInt(v)
	}
	if v := getEnv("MAX_STEPS_PER_ENTRY", ""); v != "" {
		c.MaxStepsPerEntry = int64(mustParseInt(v))
	}
	if v := getEnv("MULTIPLIER_STEP", ""); v != "" {
		c.MultiplierStep = mustParseFloat(v)
	}
	if v := getEnv("MAX_MULTIPLIER", ""); v != "" {
		c.MaxMultiplier = mustParseFloat(v)
	}
	if v := getEnv("STREAK_WINDOW_HOURS", ""); v != "" {
		c.StreakWindowHours = mustParseInt(v)
	}
	if v := getEnv("REDEEM_SCALED_BY_MULTIPLIER", ""); v != "" {
		c.RedeemScaledByMultiplier = v == "true"
	}
	if v := getEnv("METRICS_USER", ""); v != "" {
		c.MetricsUser = v
	}
	if v := getEnv("METRICS_PASSWORD", ""); v != "" {
		c.MetricsPassword = v
	}
	if v := getEnv("AUDIT_SCHEDULE", ""); v != "" {
		c.AuditSchedule = v
	}
	if v := getEnv("AUDIT_AUTO_FIX", ""); v != "" {
		c.AuditAutoFix = v == "true"
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func mustParseFloat(val string) float64 {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Fatalf("invalid float value %s: %v", val, err)
	}
	return f
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
