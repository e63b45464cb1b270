package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wangablestudio/paysplit/gateway"
	"github.com/wangablestudio/paysplit/models"
)

type InitiateInput struct {
	ContractorID     string
	Commission       decimal.Decimal
	CompanyAmount    decimal.Decimal
	ContractorAmount decimal.Decimal
	TotalAmount      decimal.Decimal
	Items            []models.LineItem
}

type InitiateResult struct {
	PaymentID  string `json:"paymentId"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	PaymentURL string `json:"paymentUrl"`
	DealID     string `json:"dealId,omitempty"`
}

// Initiate creates a payment link at the gateway and persists the new Payment
// in its initial state. On gateway rejection nothing is persisted.
func (e *Engine) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	var contractor models.Contractor
	if err := e.db.WithContext(ctx).First(&contractor, "id = ?", in.ContractorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContractorNotFound
		}
		return nil, err
	}
	if cleanPhone(contractor.Phone) == "" {
		return nil, ErrContractorNoPhone
	}

	orderID := fmt.Sprintf("order-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])

	description := fmt.Sprintf("Service payment: %s", contractor.Name)
	if contractor.Inn != "" {
		description += fmt.Sprintf(" (INN %s)", contractor.Inn)
	}

	res, err := e.gw.InitPayment(ctx, gateway.InitPaymentRequest{
		OrderID:         orderID,
		AmountKopecks:   Kopecks(in.TotalAmount),
		Description:     description,
		RecipientPhone:  cleanPhone(contractor.Phone),
		Email:           contractor.Email,
		NotificationURL: e.notificationURL,
	})
	if err != nil {
		return nil, err
	}

	payment := models.Payment{
		ID:               res.PaymentID,
		OrderID:          orderID,
		PaymentURL:       res.PaymentURL,
		Status:           res.Status,
		Commission:       in.Commission,
		CompanyAmount:    in.CompanyAmount,
		ContractorAmount: in.ContractorAmount,
		TotalAmount:      in.TotalAmount,
		DealID:           res.DealID,
		ContractorID:     contractor.ID,
	}
	if items, err := json.Marshal(in.Items); err == nil {
		payment.Items = datatypes.JSON(items)
	}
	if err := payment.SetHistory(models.PaymentHistory{Init: res.Raw}); err != nil {
		return nil, err
	}
	if err := e.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "payment initiated",
		"payment_id", payment.ID, "order_id", orderID, "status", payment.Status)

	return &InitiateResult{
		PaymentID:  payment.ID,
		OrderID:    orderID,
		Status:     payment.Status,
		PaymentURL: payment.PaymentURL,
		DealID:     payment.DealID,
	}, nil
}

// ApplyNotification processes one inbound gateway webhook payload. The map is
// the verbatim decoded body including the Token field. Duplicate and unknown
// statuses are tolerated; regressions are reconciled against the gateway.
func (e *Engine) ApplyNotification(ctx context.Context, raw map[string]any) error {
	token, _ := raw["Token"].(string)
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "Token" {
			continue
		}
		fields[k] = v
	}
	if token == "" || !gateway.Verify(fields, token, e.signingPassword) {
		e.logger.WarnContext(ctx, "notification rejected: bad token",
			"payment_id", fieldString(raw, "PaymentId"))
		return ErrInvalidSignature
	}

	paymentID := fieldString(raw, "PaymentId")
	status := fieldString(raw, "Status")
	dealID := fieldString(raw, "SpAccumulationId")

	if success, _ := raw["Success"].(bool); !success {
		e.logger.WarnContext(ctx, "ignoring notification with Success=false",
			"payment_id", paymentID, "status", status)
		return nil
	}

	unlock := e.lock(paymentID)
	defer unlock()

	var payment models.Payment
	if err := e.db.WithContext(ctx).First(&payment, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		}
		return err
	}

	history := payment.History()
	for _, n := range history.Notifications {
		if fieldString(n, "Status") == status && fieldString(n, "PaymentId") == paymentID {
			e.logger.InfoContext(ctx, "duplicate notification ignored",
				"payment_id", paymentID, "status", status)
			return nil
		}
	}

	currentStatus := payment.Status
	if currentStatus == "" {
		currentStatus = models.StatusNew
	}
	newRank, newKnown := StatusRank[status]
	curRank, curKnown := StatusRank[currentStatus]
	if newKnown && curKnown && newRank < curRank {
		e.reconcile(ctx, &payment, fields, dealID)
		return nil
	}

	history.Notifications = append(history.Notifications, fields)
	payment.Status = status
	if payment.DealID == "" && dealID != "" {
		payment.DealID = dealID
	}
	if status == models.StatusConfirmed {
		payment.IsConfirmed = true
	}
	if err := payment.SetHistory(history); err != nil {
		return err
	}
	if err := e.savePayment(ctx, &payment); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "payment status updated",
		"payment_id", paymentID, "status", status)

	// Post-transition work goes through the outbox so a locally failed side
	// effect is retried instead of lost. Enqueue failures must not bubble up
	// to the webhook sender.
	switch status {
	case models.StatusAuthorized:
		if err := e.EnqueueTask(ctx, models.TaskConfirm, paymentID); err != nil {
			e.logger.ErrorContext(ctx, "failed to enqueue confirm task",
				"payment_id", paymentID, "err", err)
		}
	case models.StatusConfirmed:
		if err := e.EnqueueTask(ctx, models.TaskSettle, paymentID); err != nil {
			e.logger.ErrorContext(ctx, "failed to enqueue settle task",
				"payment_id", paymentID, "err", err)
		}
	}
	return nil
}

// reconcile handles a status that looks like a regression: ask the gateway for
// ground truth and accept it only if its rank is at least the local one.
// A failed lookup discards the notification; local state never regresses on a
// guess.
func (e *Engine) reconcile(ctx context.Context, payment *models.Payment, notification map[string]any, dealID string) {
	state, err := e.gw.GetState(ctx, payment.ID, gateway.TerminalAcquiring)
	if err != nil {
		e.logger.WarnContext(ctx, "state check failed, discarding regressive notification",
			"payment_id", payment.ID, "err", err)
		return
	}

	curRank := StatusRank[payment.Status]
	verifiedRank, known := StatusRank[state.Status]
	if !known || verifiedRank < curRank {
		e.logger.InfoContext(ctx, "regression confirmed by gateway, notification discarded",
			"payment_id", payment.ID, "local_status", payment.Status, "gateway_status", state.Status)
		return
	}

	history := payment.History()
	history.VerifiedState = state.Status
	history.Notifications = append(history.Notifications, notification)

	payment.Status = state.Status
	if dealID != "" {
		payment.DealID = dealID
	}
	if err := payment.SetHistory(history); err != nil {
		e.logger.ErrorContext(ctx, "failed to encode history", "payment_id", payment.ID, "err", err)
		return
	}
	if err := e.savePayment(ctx, payment); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist reconciled state",
			"payment_id", payment.ID, "err", err)
		return
	}

	e.logger.InfoContext(ctx, "status reconciled from gateway",
		"payment_id", payment.ID, "status", state.Status)
}

type ConfirmResult struct {
	AlreadyConfirmed bool   `json:"alreadyConfirmed,omitempty"`
	Status           string `json:"status,omitempty"`
}

// Confirm captures the authorized amount. Idempotent: an already confirmed
// payment returns without any gateway call. Settlement (payouts + receipt) is
// queued, never inlined, so its failures cannot reach the Confirm caller.
func (e *Engine) Confirm(ctx context.Context, paymentID string) (*ConfirmResult, error) {
	unlock := e.lock(paymentID)
	defer unlock()

	var payment models.Payment
	if err := e.db.WithContext(ctx).First(&payment, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	if payment.IsConfirmed {
		e.logger.InfoContext(ctx, "payment already confirmed", "payment_id", paymentID)
		return &ConfirmResult{AlreadyConfirmed: true}, nil
	}

	res, err := e.gw.ConfirmPayment(ctx, paymentID, Kopecks(payment.TotalAmount))
	if err != nil {
		return nil, err
	}

	history := payment.History()
	history.Confirm = res.Raw
	payment.Status = models.StatusConfirmed
	payment.IsConfirmed = true
	if err := payment.SetHistory(history); err != nil {
		return nil, err
	}
	if err := e.savePayment(ctx, &payment); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "payment confirmed", "payment_id", paymentID)

	if err := e.EnqueueTask(ctx, models.TaskSettle, paymentID); err != nil {
		e.logger.ErrorContext(ctx, "failed to enqueue settle task",
			"payment_id", paymentID, "err", err)
	}

	return &ConfirmResult{Status: res.Status}, nil
}

type StateResult struct {
	Status  string          `json:"status"`
	OrderID string          `json:"orderId"`
	Amount  decimal.Decimal `json:"amount"`
}

// GetState is a read-through query against the gateway, for manual checks and
// reconciliation. kind "payout" targets the E2C terminal.
func (e *Engine) GetState(ctx context.Context, paymentID, kind string) (*StateResult, error) {
	terminal := gateway.TerminalAcquiring
	if kind == "payout" {
		terminal = gateway.TerminalPayout
	}

	state, err := e.gw.GetState(ctx, paymentID, terminal)
	if err != nil {
		return nil, err
	}

	return &StateResult{
		Status:  state.Status,
		OrderID: state.OrderID,
		Amount:  decimal.NewFromInt(state.AmountKopecks).Div(decimal.NewFromInt(100)),
	}, nil
}

// GetByOrderID loads a payment by its locally generated order id together
// with the payout attached to its deal, if any.
func (e *Engine) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, *models.Payout, error) {
	var payment models.Payment
	if err := e.db.WithContext(ctx).First(&payment, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPaymentNotFound
		}
		return nil, nil, err
	}

	var payout models.Payout
	err := e.db.WithContext(ctx).First(&payout, "deal_id = ?", payment.DealID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &payment, nil, nil
		}
		return nil, nil, err
	}
	return &payment, &payout, nil
}

func (e *Engine) savePayment(ctx context.Context, payment *models.Payment) error {
	return e.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", payment.ID).
		Updates(map[string]any{
			"status":        payment.Status,
			"deal_id":       payment.DealID,
			"is_confirmed":  payment.IsConfirmed,
			"response_data": payment.ResponseData,
			"updated_at":    time.Now(),
		}).Error
}
