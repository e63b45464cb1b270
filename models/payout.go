package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type RecipientType string

const (
	RecipientContractor RecipientType = "contractor"
	RecipientCompany    RecipientType = "company"
)

// Payout is one settled (or attempted) leg of a split payment. The id is the
// gateway-assigned payout payment id. At most one row may exist per
// (payment, recipient type) pair; the orchestrator enforces that, not the
// schema.
type Payout struct {
	ID        string    `gorm:"size:32;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PaymentID     string          `gorm:"size:32;not null;index" json:"payment_id"`
	OrderID       string          `gorm:"size:64;not null" json:"order_id"`
	DealID        string          `gorm:"size:64;not null" json:"deal_id"`
	PartnerID     string          `gorm:"size:64" json:"partner_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount"`
	RecipientType RecipientType   `gorm:"size:16" json:"recipient_type"`
	Status        string          `gorm:"size:32" json:"status"`
	FinalPayout   bool            `gorm:"default:false" json:"final_payout"`
	ResponseData  datatypes.JSON  `json:"response_data"`
}

// TableName overrides the table name
func (Payout) TableName() string {
	return "payouts"
}
