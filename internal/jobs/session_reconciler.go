package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const reconcileTimeout = time.Minute

// OrphanReconciler is implemented by services.SessionManager
type OrphanReconciler interface {
	ReconcileOrphans(ctx context.Context) ([]string, error)
}

// SessionReconciler periodically clears persisted sessions that claim to be
// live but have no connection in this process.
type SessionReconciler struct {
	cron       *cron.Cron
	reconciler OrphanReconciler
	schedule   string
	logger     *zap.Logger
}

// NewSessionReconciler creates a new reconciler job
func NewSessionReconciler(reconciler OrphanReconciler, schedule string, logger *zap.Logger) *SessionReconciler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	return &SessionReconciler{
		cron:       cron.New(cron.WithChain(cron.Recover(cronLogger))),
		reconciler: reconciler,
		schedule:   schedule,
		logger:     logger,
	}
}

// Start runs one pass immediately and then schedules the job
func (j *SessionReconciler) Start() error {
	j.RunOnce()

	if _, err := j.cron.AddFunc(j.schedule, j.RunOnce); err != nil {
		return err
	}
	j.logger.Info("⏰ Scheduled session reconciler", zap.String("schedule", j.schedule))
	j.cron.Start()
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (j *SessionReconciler) Stop() context.Context {
	return j.cron.Stop()
}

// RunOnce performs a single reconciliation pass
func (j *SessionReconciler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	orphaned, err := j.reconciler.ReconcileOrphans(ctx)
	if err != nil {
		j.logger.Error("❌ Session reconciliation failed", zap.Error(err))
		return
	}
	if len(orphaned) > 0 {
		j.logger.Info("🧹 Marked orphaned sessions disconnected", zap.Strings("sessions", orphaned))
	}
}
