package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangablestudio/paysplit/gateway"
	"github.com/wangablestudio/paysplit/models"
)

func TestEnqueueTaskReusesOpenTask(t *testing.T) {
	eng, db := newTestEngine(t, &mockGateway{}, &mockIssuer{})

	require.NoError(t, eng.EnqueueTask(context.Background(), models.TaskSettle, "100001"))
	require.NoError(t, eng.EnqueueTask(context.Background(), models.TaskSettle, "100001"))

	var count int64
	db.Model(&models.OutboxTask{}).Where("payment_id = ?", "100001").Count(&count)
	assert.Equal(t, int64(1), count)

	// A different kind for the same payment is separate work.
	require.NoError(t, eng.EnqueueTask(context.Background(), models.TaskConfirm, "100001"))
	db.Model(&models.OutboxTask{}).Where("payment_id = ?", "100001").Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestEnqueueTaskAfterCompletionCreatesNewTask(t *testing.T) {
	eng, db := newTestEngine(t, &mockGateway{}, &mockIssuer{})

	require.NoError(t, eng.EnqueueTask(context.Background(), models.TaskSettle, "100001"))
	now := time.Now()
	require.NoError(t, db.Model(&models.OutboxTask{}).
		Where("payment_id = ?", "100001").
		Update("done_at", &now).Error)

	require.NoError(t, eng.EnqueueTask(context.Background(), models.TaskSettle, "100001"))

	var count int64
	db.Model(&models.OutboxTask{}).Where("payment_id = ?", "100001").Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestProcessDueTasksFailureBacksOff(t *testing.T) {
	gw := &mockGateway{
		confirmPaymentFn: func(context.Context, string, int64) (*gateway.ConfirmResult, error) {
			return nil, &gateway.Error{Code: "7", Message: "unavailable"}
		},
	}
	eng, db := newTestEngine(t, gw, &mockIssuer{})
	c := createContractor(t, db, nil)
	createPayment(t, db, c, func(p *models.Payment) { p.Status = models.StatusAuthorized })
	require.NoError(t, eng.EnqueueTask(context.Background(), models.TaskConfirm, "100001"))

	require.NoError(t, eng.ProcessDueTasks(context.Background()))

	var task models.OutboxTask
	require.NoError(t, db.First(&task, "payment_id = ?", "100001").Error)
	assert.Equal(t, 1, task.Attempts)
	assert.Nil(t, task.DoneAt)
	assert.Contains(t, task.LastError, "unavailable")
	assert.True(t, task.NextRunAt.After(time.Now()), "failed task must be deferred")

	// The deferred task is no longer due on the next pass.
	require.NoError(t, eng.ProcessDueTasks(context.Background()))
	assert.Equal(t, 1, gw.confirmCalls)
}

func TestProcessDueTasksSkipsExhaustedTasks(t *testing.T) {
	gw := &mockGateway{}
	eng, db := newTestEngine(t, gw, &mockIssuer{})
	require.NoError(t, db.Create(&models.OutboxTask{
		ID:        "task-1",
		PaymentID: "100001",
		Kind:      models.TaskConfirm,
		Attempts:  outboxMaxAttempts,
		NextRunAt: time.Now().Add(-time.Minute),
	}).Error)

	require.NoError(t, eng.ProcessDueTasks(context.Background()))
	assert.Equal(t, 0, gw.confirmCalls)
}

func TestBackoffDoublesUpToCap(t *testing.T) {
	assert.Equal(t, 30*time.Second, backoff(1))
	assert.Equal(t, time.Minute, backoff(2))
	assert.Equal(t, 8*time.Minute, backoff(5))
	assert.Equal(t, time.Hour, backoff(10))
}

// Full happy path driven through the runner: an AUTHORIZED webhook queues the
// capture, the capture queues settlement, settlement pays out and issues the
// fiscal receipt.
func TestOutboxDrivesAuthorizedPaymentToSettlement(t *testing.T) {
	gw := &mockGateway{
		confirmPaymentFn: func(context.Context, string, int64) (*gateway.ConfirmResult, error) {
			return &gateway.ConfirmResult{Status: models.StatusConfirmed, Raw: map[string]any{"Status": "CONFIRMED"}}, nil
		},
		initPayoutFn: func(_ context.Context, req gateway.InitPayoutRequest) (*gateway.InitPayoutResult, error) {
			assert.Equal(t, int64(70000), req.AmountKopecks)
			return &gateway.InitPayoutResult{PayoutID: "po-1", Status: "COMPLETED"}, nil
		},
	}
	issuer := &mockIssuer{}
	eng, db := newTestEngine(t, gw, issuer)
	c := createContractor(t, db, nil)
	createPayment(t, db, c, nil)

	require.NoError(t, eng.ApplyNotification(context.Background(), signedNotification(map[string]any{
		"PaymentId": "100001",
		"Status":    models.StatusAuthorized,
		"Success":   true,
	})))

	// First pass captures, second pass settles.
	require.NoError(t, eng.ProcessDueTasks(context.Background()))
	require.NoError(t, eng.ProcessDueTasks(context.Background()))

	assert.Equal(t, 1, gw.confirmCalls)
	assert.Equal(t, 1, gw.initPayoutCalls)
	assert.Equal(t, 1, issuer.calls)

	stored := reloadPayment(t, db, "100001")
	assert.Equal(t, models.StatusConfirmed, stored.Status)
	assert.True(t, stored.IsConfirmed)
	assert.True(t, stored.IsPaidOut)

	var open int64
	db.Model(&models.OutboxTask{}).Where("done_at IS NULL").Count(&open)
	assert.Zero(t, open)
}
