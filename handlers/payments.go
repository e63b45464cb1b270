package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wangablestudio/paysplit/engine"
	"github.com/wangablestudio/paysplit/gateway"
	"github.com/wangablestudio/paysplit/models"
)

type PaymentHandler struct {
	engine *engine.Engine
}

func NewPaymentHandler(eng *engine.Engine) *PaymentHandler {
	return &PaymentHandler{engine: eng}
}

type ContractorRef struct {
	ID string `json:"id" binding:"required"`
}

type InitPaymentRequest struct {
	Contractor       ContractorRef     `json:"contractor" binding:"required"`
	Commission       decimal.Decimal   `json:"commission"`
	CompanyAmount    decimal.Decimal   `json:"companyAmount"`
	ContractorAmount decimal.Decimal   `json:"contractorAmount"`
	TotalAmount      decimal.Decimal   `json:"totalAmount" binding:"required"`
	Items            []models.LineItem `json:"items"`
}

func (h *PaymentHandler) InitPayment(c *gin.Context) {
	var req InitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.engine.Initiate(c.Request.Context(), engine.InitiateInput{
		ContractorID:     req.Contractor.ID,
		Commission:       req.Commission,
		CompanyAmount:    req.CompanyAmount,
		ContractorAmount: req.ContractorAmount,
		TotalAmount:      req.TotalAmount,
		Items:            req.Items,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"paymentUrl": res.PaymentURL,
		"orderId":    res.OrderID,
		"status":     res.Status,
		"paymentId":  res.PaymentID,
		"dealId":     res.DealID,
	})
}

// Notification is the gateway webhook endpoint. By contract the body is plain
// "OK" even when local processing goes sideways — the gateway would only
// retry, and a retry cannot fix a business-logic failure. Only an invalid
// signature or an unresolvable payment is reported back.
func (h *PaymentHandler) Notification(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.String(http.StatusBadRequest, "ERROR: Bad payload")
		return
	}

	err := h.engine.ApplyNotification(c.Request.Context(), raw)
	switch {
	case err == nil:
		c.String(http.StatusOK, "OK")
	case errors.Is(err, engine.ErrInvalidSignature):
		c.String(http.StatusBadRequest, "ERROR: Invalid token")
	case errors.Is(err, engine.ErrPaymentNotFound):
		c.String(http.StatusNotFound, "ERROR: Payment not found")
	default:
		c.String(http.StatusInternalServerError, "ERROR")
	}
}

type PaymentRef struct {
	PaymentID string `json:"paymentId" binding:"required"`
}

func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req PaymentRef
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.engine.Confirm(c.Request.Context(), req.PaymentID)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

func (h *PaymentHandler) Payout(c *gin.Context) {
	var req PaymentRef
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.engine.ExecutePayouts(c.Request.Context(), req.PaymentID)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

func (h *PaymentHandler) GetState(c *gin.Context) {
	paymentID := c.Param("paymentId")
	if paymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment id is required"})
		return
	}

	res, err := h.engine.GetState(c.Request.Context(), paymentID, c.Query("type"))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  res.Status,
		"orderId": res.OrderID,
		"amount":  res.Amount,
	})
}

func (h *PaymentHandler) GetByOrderID(c *gin.Context) {
	payment, payout, err := h.engine.GetByOrderID(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment, "payout": payout})
}

// respondEngineError maps the engine's error taxonomy onto HTTP statuses:
// gateway rejections carry the processor message, precondition failures are
// 422, lookups 404, everything unexpected a generic 500.
func respondEngineError(c *gin.Context, err error) {
	if ge, ok := gateway.AsError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": ge.Message})
		return
	}

	switch {
	case errors.Is(err, engine.ErrPaymentNotFound),
		errors.Is(err, engine.ErrContractorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrContractorNoPhone),
		errors.Is(err, engine.ErrInvalidPayoutRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrMissingDealID),
		errors.Is(err, engine.ErrMissingContractor),
		errors.Is(err, engine.ErrMissingPartnerID),
		errors.Is(err, engine.ErrPayoutFailed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
