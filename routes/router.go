package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/refit/refit-api/config"
	"github.com/refit/refit-api/controllers"
	"github.com/refit/refit-api/middleware"
	"github.com/refit/refit-api/services"
	"github.com/refit/refit-api/utils"
)

// SetupRouter wires routes, middlewares, and controllers from the loaded configuration.
func SetupRouter(db *gorm.DB) *gin.Engine {
	return NewRouter(db, config.Get())
}

// NewRouter builds the engine for an explicit configuration.
func NewRouter(db *gorm.DB, cfg config.AppConfig) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access logs go to their own rolling file, separate from the application log
	gl := utils.NewRollingFileLogger(cfg, cfg.GinPath)
	r.Use(utils.RequestID())
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, true))
	r.Use(middleware.Monitor())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", utils.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", middleware.MetricsHandler(cfg.MetricsUser, cfg.MetricsPassword)...)

	policy := services.PolicyFromConfig(cfg)
	clock := services.NewClock(cfg.Location())
	var cache services.Cache
	if cfg.RedisHost != "" {
		cache = utils.RedisCache{}
	}

	stepService := services.NewStepService(db, policy, clock)
	objectiveService := services.NewObjectiveService(db, policy, clock)
	catalogService := services.NewCatalogService(db, cache)
	auditService := services.NewAuditService(db)

	stepController := controllers.NewStepController(stepService)
	objectiveController := controllers.NewObjectiveController(objectiveService, catalogService)
	eventController := controllers.NewEventController(objectiveService)
	auditController := controllers.NewAuditController(auditService)
	statsController := controllers.NewStatsController(db, clock)
	configController := controllers.NewConfigController(policy, cfg.TimeZone)
	sessionController := controllers.NewSessionController()

	api := r.Group("/api/v1")

	// Called by the account service, e.g. after a successful login
	internal := api.Group("/internal")
	internal.Use(middleware.InternalTokenRequired(cfg.InternalToken))
	internal.POST("/events", eventController.Publish)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	protected.GET("/steps", stepController.GetSteps)
	protected.PATCH("/steps", stepController.UpdateSteps)
	protected.GET("/steps/history", stepController.History)
	protected.GET("/objectives/active", objectiveController.Active)
	protected.POST("/objectives/check", objectiveController.Check)
	protected.POST("/objectives/redeem", objectiveController.Redeem)
	protected.GET("/config/rewards", configController.GetRewards)
	protected.POST("/session/revoke", sessionController.Revoke)

	admin := protected.Group("")
	admin.Use(middleware.AdminRequired(cfg.AdminUsernames))
	admin.GET("/objectives", objectiveController.ListDefinitions)
	admin.POST("/objectives", objectiveController.CreateDefinition)
	admin.GET("/objectives/:id", objectiveController.GetDefinition)
	admin.PATCH("/objectives/:id", objectiveController.UpdateDefinition)
	admin.POST("/admin/audit", auditController.Run)
	admin.GET("/stats", statsController.GetStats)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	return r
}
