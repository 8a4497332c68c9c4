package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refit/refit-api/services"
)

type stubReconciler struct {
	calls atomic.Int32
	fix   atomic.Bool
	err   error
}

func (s *stubReconciler) ReconcileAll(ctx context.Context, fix bool) ([]services.AuditReport, error) {
	s.calls.Add(1)
	s.fix.Store(fix)
	return nil, s.err
}

func TestAuditJobRunOnce(t *testing.T) {
	stub := &stubReconciler{}
	job := NewAuditJob(stub, "@every 1h", true)

	job.RunOnce()
	assert.Equal(t, int32(1), stub.calls.Load())
	assert.True(t, stub.fix.Load())

	stub.err = errors.New("db down")
	job.RunOnce()
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestAuditJobSchedule(t *testing.T) {
	stub := &stubReconciler{}
	job := NewAuditJob(stub, "@every 1s", false)
	require.NoError(t, job.Start())

	assert.Eventually(t, func() bool { return stub.calls.Load() > 0 }, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	job.Stop(ctx)
}

func TestAuditJobRejectsBadSchedule(t *testing.T) {
	job := NewAuditJob(&stubReconciler{}, "every tuesday", false)
	assert.Error(t, job.Start())
}
