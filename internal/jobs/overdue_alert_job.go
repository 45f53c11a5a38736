package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"seller-portal/internal/logger"
	"seller-portal/internal/models"
	"seller-portal/internal/order"
	"seller-portal/internal/workflow"
)

// alertTTL keeps an order from being alerted twice; planning deadlines are
// minutes long, so a day is plenty.
const alertTTL = 24 * time.Hour

const (
	lockName = "overdue-alerts"
	lockTTL  = 50 * time.Second
	runLimit = 30 * time.Second
)

var systemActor = workflow.Actor{UserID: "system", Admin: true}

// OverdueAlertJob announces accepted orders whose pickup planning deadline
// has passed. It only reads orders; nothing is written back.
type OverdueAlertJob struct {
	// Lock is optional; without it every instance runs each pass and the
	// deduper alone suppresses repeats.
	Lock RunLock

	service  *order.OrderService
	dedup    Deduper
	schedule string
	owner    string
	cron     *cron.Cron
	logger   *logger.Logger
}

func NewOverdueAlertJob(service *order.OrderService, dedup Deduper, schedule string, log *logger.Logger) *OverdueAlertJob {
	return &OverdueAlertJob{
		service:  service,
		dedup:    dedup,
		schedule: schedule,
		owner:    uuid.NewString(),
		cron:     cron.New(),
		logger:   log,
	}
}

// Start schedules the job.
func (j *OverdueAlertJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runLimit)
		defer cancel()
		j.runScheduled(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", j.schedule, err)
	}

	j.cron.Start()
	j.logger.Info("JOBS", fmt.Sprintf("Overdue alert job started (%s)", j.schedule))
	return nil
}

// Stop waits for a running pass to finish.
func (j *OverdueAlertJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("JOBS", "Overdue alert job stopped")
}

// runScheduled runs one pass unless another instance holds the lock.
func (j *OverdueAlertJob) runScheduled(ctx context.Context) (ran bool) {
	if j.Lock != nil {
		ok, err := j.Lock.TryLock(ctx, lockName, j.owner, lockTTL)
		if err != nil {
			j.logger.Error("JOBS", fmt.Sprintf("Overdue alert lock failed: %v", err))
			return false
		}
		if !ok {
			j.logger.Debug("JOBS", "Overdue alert pass running elsewhere, skipping")
			return false
		}
		defer func() {
			if err := j.Lock.Unlock(context.WithoutCancel(ctx), lockName, j.owner); err != nil {
				j.logger.Warn("JOBS", fmt.Sprintf("Overdue alert unlock failed: %v", err))
			}
		}()
	}

	if _, err := j.RunOnce(ctx); err != nil {
		j.logger.Error("JOBS", fmt.Sprintf("Overdue alert run failed: %v", err))
	}
	return true
}

// RunOnce alerts every overdue order not alerted before and returns how
// many alerts went out.
func (j *OverdueAlertJob) RunOnce(ctx context.Context) (int, error) {
	overdue, err := j.service.ListOrdersForAdmin(ctx, systemActor, models.StatusAdminOverdue, 0)
	if err != nil {
		return 0, err
	}

	now := j.service.Now().UnixMilli()
	sent := 0
	for _, o := range overdue {
		first, err := j.dedup.FirstSeen(ctx, o.OrderID, alertTTL)
		if err != nil {
			return sent, fmt.Errorf("dedup %s: %w", o.OrderID, err)
		}
		if !first {
			continue
		}

		payload := models.WorkflowEventPayload{
			OrderID:        o.OrderID,
			MerchantID:     o.MerchantID,
			WorkflowStatus: o.Stored,
			Actor:          systemActor.UserID,
			At:             now,
			Overdue:        true,
			AdminPlanBy:    o.Deadline,
		}
		if err := j.service.Events.PublishWorkflowEvent(ctx, models.EventPlanDeadlineMissed, payload); err != nil {
			j.logger.Error("JOBS", fmt.Sprintf("Failed to alert overdue order %s: %v", o.OrderID, err))
			continue
		}
		j.logger.LogOrder("OVERDUE", o.OrderID, "pickup planning deadline missed")
		sent++
	}
	return sent, nil
}
