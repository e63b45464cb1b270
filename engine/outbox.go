package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wangablestudio/paysplit/models"
)

const (
	outboxBaseBackoff = 30 * time.Second
	outboxMaxBackoff  = time.Hour
	outboxMaxAttempts = 10
)

// EnqueueTask records post-transition work for the runner. An open task for
// the same (payment, kind) is reused, so a redelivered webhook does not fan
// out into duplicate work.
func (e *Engine) EnqueueTask(ctx context.Context, kind models.TaskKind, paymentID string) error {
	var existing models.OutboxTask
	err := e.db.WithContext(ctx).
		Where("payment_id = ? AND kind = ? AND done_at IS NULL", paymentID, kind).
		First(&existing).Error
	if err == nil {
		return nil
	}

	task := models.OutboxTask{
		ID:        uuid.NewString(),
		PaymentID: paymentID,
		Kind:      kind,
		NextRunAt: time.Now(),
	}
	return e.db.WithContext(ctx).Create(&task).Error
}

// RunOutbox drains due tasks until ctx is cancelled. Intended to run as a
// single background goroutine next to the HTTP server.
func (e *Engine) RunOutbox(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.ProcessDueTasks(ctx); err != nil {
				e.logger.ErrorContext(ctx, "outbox pass failed", "err", err)
			}
		}
	}
}

// ProcessDueTasks executes every task whose next run is due. Exported so
// tests can drive the runner deterministically.
func (e *Engine) ProcessDueTasks(ctx context.Context) error {
	var tasks []models.OutboxTask
	err := e.db.WithContext(ctx).
		Where("done_at IS NULL AND attempts < ? AND next_run_at <= ?", outboxMaxAttempts, time.Now()).
		Order("next_run_at").
		Find(&tasks).Error
	if err != nil {
		return err
	}

	for _, task := range tasks {
		e.runTask(ctx, task)
	}
	return nil
}

func (e *Engine) runTask(ctx context.Context, task models.OutboxTask) {
	var err error
	switch task.Kind {
	case models.TaskConfirm:
		_, err = e.Confirm(ctx, task.PaymentID)
	case models.TaskSettle:
		err = e.settle(ctx, task.PaymentID)
	default:
		err = fmt.Errorf("unknown task kind %q", task.Kind)
	}

	now := time.Now()
	if err != nil {
		attempts := task.Attempts + 1
		e.logger.ErrorContext(ctx, "outbox task failed",
			"task_id", task.ID, "kind", task.Kind, "payment_id", task.PaymentID,
			"attempt", attempts, "err", err)
		e.db.WithContext(ctx).Model(&models.OutboxTask{}).
			Where("id = ?", task.ID).
			Updates(map[string]any{
				"attempts":    attempts,
				"next_run_at": now.Add(backoff(attempts)),
				"last_error":  truncate(err.Error(), 500),
				"updated_at":  now,
			})
		return
	}

	e.db.WithContext(ctx).Model(&models.OutboxTask{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{
			"done_at":    &now,
			"last_error": "",
			"updated_at": now,
		})
	e.logger.InfoContext(ctx, "outbox task done",
		"task_id", task.ID, "kind", task.Kind, "payment_id", task.PaymentID)
}

func backoff(attempts int) time.Duration {
	d := outboxBaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= outboxMaxBackoff {
			return outboxMaxBackoff
		}
	}
	return d
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
