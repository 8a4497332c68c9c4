package main

import (
	"context"

	"github.com/refit/refit-api/config"
	"github.com/refit/refit-api/jobs"
	"github.com/refit/refit-api/middleware"
	"github.com/refit/refit-api/models"
	"github.com/refit/refit-api/routes"
	"github.com/refit/refit-api/services"
	"github.com/refit/refit-api/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(&models.User{}, &models.StepRecord{}, &models.ObjectiveDefinition{}, &models.ObjectiveAssignment{})

	middleware.InitPrometheus()
	r := routes.SetupRouter(db)

	srv := utils.NewServer(":"+cfg.AppPort, r, utils.DEFAULT_READ_TIMEOUT, utils.DEFAULT_WRITE_TIMEOUT)

	if cfg.AuditSchedule != "" {
		job := jobs.NewAuditJob(services.NewAuditService(db), cfg.AuditSchedule, cfg.AuditAutoFix)
		if err := job.Start(); err != nil {
			utils.Sugar.Fatalf("audit job: %v", err)
		}
		srv.OnShutdown(job.Stop)
	}
	srv.OnShutdown(func(ctx context.Context) {
		utils.CloseRedis()
		if sqlDB, err := config.DB().DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	utils.Sugar.Infof("Starting server on port %s (time zone %s)", cfg.AppPort, cfg.TimeZone)
	if err := srv.ListenAndServe(); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
