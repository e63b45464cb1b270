package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wangablestudio/paysplit/gateway"
	"github.com/wangablestudio/paysplit/models"
	"github.com/wangablestudio/paysplit/receipts"
)

type PayoutRunResult struct {
	AlreadyPaidOut bool          `json:"alreadyPaidOut,omitempty"`
	Contractor     *PayoutResult `json:"contractor,omitempty"`
	// The company leg is computed but deliberately not dispatched; company
	// settlement happens outside this system. Kept as an extension point.
	CompanyAmount decimal.Decimal `json:"companyAmount"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
}

type PayoutResult struct {
	PayoutID string          `json:"payoutId"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
}

// ExecutePayouts dispatches the payout legs of a confirmed payment, at most
// once per payment. Precondition failures are hard stops: no partial payout
// is attempted and the paid-out flag stays false.
func (e *Engine) ExecutePayouts(ctx context.Context, paymentID string) (*PayoutRunResult, error) {
	unlock := e.lock(paymentID)
	defer unlock()

	var payment models.Payment
	if err := e.db.WithContext(ctx).Preload("Contractor").
		First(&payment, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	if payment.IsPaidOut {
		e.logger.InfoContext(ctx, "payment already paid out", "payment_id", paymentID)
		return &PayoutRunResult{AlreadyPaidOut: true}, nil
	}

	if payment.DealID == "" {
		return nil, fmt.Errorf("payment %s: %w", paymentID, ErrMissingDealID)
	}
	contractor := payment.Contractor
	if contractor == nil {
		return nil, fmt.Errorf("payment %s: %w", paymentID, ErrMissingContractor)
	}
	if contractor.Type.RequiresPartnerID() && contractor.PartnerID == "" {
		return nil, fmt.Errorf("contractor %s (%s): %w", contractor.ID, contractor.Type, ErrMissingPartnerID)
	}

	result := &PayoutRunResult{CompanyAmount: payment.CompanyAmount}

	if payment.ContractorAmount.IsPositive() {
		in := SendPayoutInput{
			PaymentID:     payment.ID,
			DealID:        payment.DealID,
			Amount:        payment.ContractorAmount,
			RecipientType: models.RecipientContractor,
			FinalPayout:   true,
		}
		// Partner-based and instant-transfer addressing are mutually
		// exclusive per contractor type.
		if contractor.Type.RequiresPartnerID() {
			in.PartnerID = contractor.PartnerID
		} else {
			if contractor.MemberID != nil {
				in.MemberID = *contractor.MemberID
			}
			in.Phone = digitsOnly(contractor.Phone)
		}

		res, err := e.SendPayout(ctx, in)
		if err != nil {
			e.logger.ErrorContext(ctx, "contractor payout failed",
				"payment_id", paymentID, "err", err)
			return nil, fmt.Errorf("%w: %v", ErrPayoutFailed, err)
		}
		result.Contractor = res
	}

	method := models.MethodMemberTransfer
	if contractor.PartnerID != "" {
		method = models.MethodCard
	}
	result.PaymentMethod = method

	if err := e.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND is_paid_out = ?", paymentID, false).
		Updates(map[string]any{
			"is_paid_out":    true,
			"payment_method": method,
			"updated_at":     time.Now(),
		}).Error; err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "all payouts completed",
		"payment_id", paymentID, "method", method)
	return result, nil
}

type SendPayoutInput struct {
	PaymentID     string
	DealID        string
	Amount        decimal.Decimal
	RecipientType models.RecipientType
	PartnerID     string
	Phone         string
	MemberID      string
	FinalPayout   bool
}

// SendPayout dispatches a single payout leg. It does not de-duplicate; the
// orchestrator's paid-out gate is the only thing preventing a second leg for
// the same (payment, recipient type) pair, so never call this twice for one.
func (e *Engine) SendPayout(ctx context.Context, in SendPayoutInput) (*PayoutResult, error) {
	if in.DealID == "" || !in.Amount.IsPositive() {
		return nil, ErrInvalidPayoutRequest
	}

	orderID := fmt.Sprintf("payout-%d-%s", time.Now().UnixMilli(), in.RecipientType)

	res, err := e.gw.InitPayout(ctx, gateway.InitPayoutRequest{
		OrderID:       orderID,
		DealID:        in.DealID,
		AmountKopecks: Kopecks(in.Amount),
		PartnerID:     in.PartnerID,
		Phone:         in.Phone,
		MemberID:      in.MemberID,
		FinalPayout:   in.FinalPayout,
	})
	if err != nil {
		return nil, err
	}

	payout := models.Payout{
		ID:            res.PayoutID,
		PaymentID:     in.PaymentID,
		OrderID:       orderID,
		DealID:        in.DealID,
		PartnerID:     in.PartnerID,
		Amount:        in.Amount,
		RecipientType: in.RecipientType,
		Status:        res.Status,
		FinalPayout:   in.FinalPayout,
	}
	if raw, err := json.Marshal(res.Raw); err == nil {
		payout.ResponseData = datatypes.JSON(raw)
	}
	if err := e.db.WithContext(ctx).Create(&payout).Error; err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "payout created",
		"payment_id", in.PaymentID, "payout_id", res.PayoutID, "type", in.RecipientType)

	// Partner-addressed payouts need a follow-up call on the E2C terminal to
	// run the registered payout. Best effort: the gateway finishes it on its
	// own schedule if this probe fails.
	if in.PartnerID != "" {
		if state, err := e.gw.GetPayoutState(ctx, res.PayoutID); err != nil {
			e.logger.WarnContext(ctx, "payout state refresh failed",
				"payout_id", res.PayoutID, "err", err)
		} else if state.Status != "" && state.Status != payout.Status {
			payout.Status = state.Status
			if err := e.db.WithContext(ctx).Model(&models.Payout{}).
				Where("id = ?", payout.ID).
				Update("status", state.Status).Error; err != nil {
				e.logger.WarnContext(ctx, "payout status update failed",
					"payout_id", payout.ID, "err", err)
			}
		}
	}

	return &PayoutResult{
		PayoutID: payout.ID,
		Status:   payout.Status,
		Amount:   in.Amount,
	}, nil
}

// settle runs the post-confirmation work: payout legs, then the fiscal
// receipt. Called from the outbox runner; ExecutePayouts is idempotent so a
// receipt failure can safely requeue the whole task.
func (e *Engine) settle(ctx context.Context, paymentID string) error {
	if _, err := e.ExecutePayouts(ctx, paymentID); err != nil {
		return err
	}

	var payment models.Payment
	if err := e.db.WithContext(ctx).Preload("Contractor").
		First(&payment, "id = ?", paymentID).Error; err != nil {
		return err
	}

	rcpt := receipts.Receipt{
		InvoiceID:        payment.ID,
		CompanyAmount:    payment.CompanyAmount,
		ContractorAmount: payment.ContractorAmount,
		TotalAmount:      payment.TotalAmount,
	}
	if payment.Contractor != nil {
		rcpt.Email = payment.Contractor.Email
		rcpt.Phone = digitsOnly(payment.Contractor.Phone)
	}

	if err := e.receipts.Issue(ctx, rcpt); err != nil {
		e.logger.ErrorContext(ctx, "fiscal receipt failed",
			"payment_id", paymentID, "err", err)
		return err
	}
	return nil
}
