package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment statuses as reported by the gateway. The engine defines a strict
// rank over them for regression detection (see engine.StatusRank).
const (
	StatusNew              = "NEW"
	StatusAuthorized       = "AUTHORIZED"
	StatusConfirmed        = "CONFIRMED"
	StatusRejected         = "REJECTED"
	StatusRefunded         = "REFUNDED"
	StatusCanceled         = "CANCELED"
	StatusPayoutsCompleted = "PAYOUTS_COMPLETED"
)

// Payment method labels derived after all payout legs settle.
const (
	MethodCard           = "card"
	MethodMemberTransfer = "SBP"
)

// Payment is the authoritative local record of one gateway payment. The id is
// assigned by the gateway at init. Rows are never deleted; ResponseData is the
// append-only audit trail of everything the gateway said about this payment.
type Payment struct {
	ID        string    `gorm:"size:32;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderID    string `gorm:"size:64;uniqueIndex;not null" json:"order_id"`
	PaymentURL string `gorm:"size:500" json:"payment_url"`
	Status     string `gorm:"size:32" json:"status"`

	Commission       decimal.Decimal `gorm:"type:decimal(15,2)" json:"commission"`
	CompanyAmount    decimal.Decimal `gorm:"type:decimal(15,2)" json:"company_amount"`
	ContractorAmount decimal.Decimal `gorm:"type:decimal(15,2)" json:"contractor_amount"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(15,2)" json:"total_amount"`

	Items        datatypes.JSON `json:"items"`
	ResponseData datatypes.JSON `json:"response_data"`

	// Split-payment deal grouping id, assigned asynchronously by the
	// gateway. Once set it is only replaced by reconciliation; a notification
	// may fill it in when empty but never silently overwrite it.
	DealID string `gorm:"size:64" json:"deal_id"`

	IsConfirmed   bool   `gorm:"default:false" json:"is_confirmed"`
	IsPaidOut     bool   `gorm:"default:false" json:"is_paid_out"`
	PaymentMethod string `gorm:"size:32;default:'SBP'" json:"payment_method"`

	ContractorID string      `gorm:"type:uuid;not null;index" json:"contractor_id"`
	Contractor   *Contractor `gorm:"foreignKey:ContractorID" json:"contractor,omitempty"`
}

// TableName overrides the table name
func (Payment) TableName() string {
	return "payments"
}

// LineItem is one row of the paid service breakdown.
type LineItem struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
	Qty    int             `json:"qty"`
}

// PaymentHistory is the decoded shape of Payment.ResponseData. Notifications
// are stored verbatim as received; they double as the de-duplication record.
type PaymentHistory struct {
	Init          map[string]any   `json:"init,omitempty"`
	Notifications []map[string]any `json:"notifications,omitempty"`
	Confirm       map[string]any   `json:"confirm,omitempty"`
	VerifiedState string           `json:"verifiedState,omitempty"`
}

// History decodes ResponseData. An empty or absent column yields a zero
// history rather than an error so callers can always append.
func (p *Payment) History() PaymentHistory {
	var h PaymentHistory
	if len(p.ResponseData) > 0 {
		_ = json.Unmarshal(p.ResponseData, &h)
	}
	return h
}

// SetHistory re-encodes the history into ResponseData.
func (p *Payment) SetHistory(h PaymentHistory) error {
	raw, err := json.Marshal(h)
	if err != nil {
		return err
	}
	p.ResponseData = datatypes.JSON(raw)
	return nil
}
