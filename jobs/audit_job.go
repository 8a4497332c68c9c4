package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/refit/refit-api/services"
	"github.com/refit/refit-api/utils"
)

// Reconciler is the part of the audit service the job drives.
type Reconciler interface {
	ReconcileAll(ctx context.Context, fix bool) ([]services.AuditReport, error)
}

// AuditJob periodically compares user counters against the step ledger.
type AuditJob struct {
	audit    Reconciler
	cron     *cron.Cron
	schedule string
	fix      bool
	timeout  time.Duration
}

// NewAuditJob creates a job for a standard cron spec or "@every <duration>".
func NewAuditJob(audit Reconciler, schedule string, fix bool) *AuditJob {
	return &AuditJob{
		audit:    audit,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		schedule: schedule,
		fix:      fix,
		timeout:  10 * time.Minute,
	}
}

// Start registers the schedule and starts the scheduler.
func (j *AuditJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.RunOnce); err != nil {
		return fmt.Errorf("failed to add audit job %q: %w", j.schedule, err)
	}
	j.cron.Start()
	utils.Logger.Info("counter audit scheduled", zap.String("schedule", j.schedule), zap.Bool("auto_fix", j.fix))
	return nil
}

// Stop waits for a running audit to finish or for ctx to expire.
func (j *AuditJob) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		utils.Logger.Info("counter audit stopped")
	case <-ctx.Done():
		utils.Logger.Warn("counter audit still running at shutdown")
	}
}

// RunOnce audits every user and logs the inconsistent ones.
func (j *AuditJob) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	reports, err := j.audit.ReconcileAll(ctx, j.fix)
	if err != nil {
		utils.Logger.Error("counter audit failed", zap.Error(err), zap.Int("inconsistent", len(reports)))
		return
	}
	utils.Logger.Info("counter audit completed",
		zap.Int("inconsistent", len(reports)),
		zap.Duration("took", time.Since(start)),
	)
}
