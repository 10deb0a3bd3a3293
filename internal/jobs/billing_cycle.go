// Package jobs runs the scheduled billing maintenance work.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ecclesia-cloud/billing-service/internal/service"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
)

const runTimeout = 5 * time.Minute

// BillingCycleJob periodically applies due plan changes and suspends
// tenants whose grace window has elapsed.
type BillingCycleJob struct {
	subscriptions service.SubscriptionService
	cron          *cron.Cron
	schedule      string
	log           *logger.Logger
}

// NewBillingCycleJob creates the job. schedule is a cron spec,
// "@hourly" by default.
func NewBillingCycleJob(subscriptions service.SubscriptionService, schedule string, log *logger.Logger) *BillingCycleJob {
	return &BillingCycleJob{
		subscriptions: subscriptions,
		cron:          cron.New(),
		schedule:      schedule,
		log:           log,
	}
}

// Start registers the schedule and starts the cron loop.
func (j *BillingCycleJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.Run); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Infow("Billing cycle job scheduled", "schedule", j.schedule)
	return nil
}

// Stop halts the cron loop and waits for a running pass to finish.
func (j *BillingCycleJob) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// Run executes one reconcile pass. It is also invoked directly by the
// admin tooling, so it must be safe to run at any moment.
func (j *BillingCycleJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	now := time.Now()

	applied, err := j.subscriptions.ProcessDueChanges(ctx, now)
	if err != nil {
		j.log.Errorw("Failed to process due plan changes", "error", err)
	} else if applied > 0 {
		j.log.Infow("Applied due plan changes", "count", applied)
	}

	suspended, err := j.subscriptions.SuspendOverdue(ctx, now)
	if err != nil {
		j.log.Errorw("Failed to suspend overdue tenants", "error", err)
	} else if suspended > 0 {
		j.log.Infow("Suspended overdue tenants", "count", suspended)
	}
}
