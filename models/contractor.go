package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContractorType mirrors the legal form of the payout recipient. The form
// decides how a payout leg is addressed: entity types settle through a
// registered gateway partner, the rest through the instant-transfer scheme
// (member id + phone).
type ContractorType string

const (
	ContractorIndividual   ContractorType = "individual"
	ContractorLegalEntity  ContractorType = "legal_entity"
	ContractorSelfEmployed ContractorType = "self_employed"
	ContractorSoleTrader   ContractorType = "ip"
	ContractorLimited      ContractorType = "ooo"
)

// RequiresPartnerID reports whether payouts to this contractor type must be
// addressed to a gateway-registered partner.
func (t ContractorType) RequiresPartnerID() bool {
	switch t {
	case ContractorSoleTrader, ContractorLimited, ContractorLegalEntity:
		return true
	}
	return false
}

// UsesMemberTransfer reports whether payouts to this contractor type go out
// over the instant-transfer scheme (member id + phone addressing).
func (t ContractorType) UsesMemberTransfer() bool {
	return !t.RequiresPartnerID()
}

type Contractor struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name string         `gorm:"size:255;not null" json:"name"`
	Type ContractorType `gorm:"size:20;not null;default:'individual'" json:"type"`

	// Identification numbers
	Inn   string `gorm:"size:12" json:"inn"`
	Kpp   string `gorm:"size:9;default:'000000000'" json:"kpp"`
	Ogrn  string `gorm:"size:15" json:"ogrn"`
	Okved string `gorm:"size:10" json:"okved"`

	// Contacts
	Phone   string `gorm:"size:20" json:"phone"`
	Email   string `gorm:"size:255" json:"email"`
	SiteURL string `gorm:"size:255" json:"site_url"`

	// Addresses
	LegalAddress  string `gorm:"type:text" json:"legal_address"`
	ActualAddress string `gorm:"type:text" json:"actual_address"`
	Zip           string `gorm:"size:10" json:"zip"`
	City          string `gorm:"size:100" json:"city"`
	Country       string `gorm:"size:3;default:'RUS'" json:"country"`
	Street        string `gorm:"size:255" json:"street"`

	// Bank details
	BankAccount string `gorm:"size:20" json:"bank_account"`
	BankName    string `gorm:"size:255" json:"bank_name"`
	BankBik     string `gorm:"size:9" json:"bank_bik"`

	// Registration payload extras
	FullName          string `gorm:"size:255" json:"full_name"`
	BillingDescriptor string `gorm:"size:255" json:"billing_descriptor"`
	Comment           string `gorm:"type:text" json:"comment"`

	CeoFirstName string `gorm:"size:100" json:"ceo_first_name"`
	CeoLastName  string `gorm:"size:100" json:"ceo_last_name"`
	CeoPhone     string `gorm:"size:20" json:"ceo_phone"`
	CeoCountry   string `gorm:"size:3;default:'RUS'" json:"ceo_country"`

	// Assigned by the gateway once the contractor is registered as a
	// settlement partner. Required before entity-type payouts.
	PartnerID string `gorm:"size:64" json:"partner_id"`

	// Instant-transfer scheme participant the contractor banks with.
	MemberID *string `gorm:"size:32" json:"member_id"`
	Member   *Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`
}

// TableName overrides the table name
func (Contractor) TableName() string {
	return "contractors"
}

func (c *Contractor) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
