package gateway

import "encoding/json"

// Terminal selects which terminal credential signs a call: the acquiring
// terminal for inbound payments, the E2C terminal for payout legs.
type Terminal int

const (
	TerminalAcquiring Terminal = iota
	TerminalPayout
)

// flexString decodes both JSON strings and numbers. The processor is not
// consistent about PaymentId across endpoints and notification payloads.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

type envelope struct {
	Success   bool   `json:"Success"`
	ErrorCode string `json:"ErrorCode"`
	Message   string `json:"Message"`
	Details   string `json:"Details"`
}

type InitPaymentRequest struct {
	OrderID         string
	AmountKopecks   int64
	Description     string
	RecipientPhone  string // cleaned, digits and leading + only
	Email           string
	NotificationURL string
}

type InitPaymentResult struct {
	PaymentID  string
	Status     string
	PaymentURL string
	DealID     string
	Raw        map[string]any
}

type ConfirmResult struct {
	Status string
	Raw    map[string]any
}

type StateResult struct {
	Status        string
	OrderID       string
	AmountKopecks int64
	Raw           map[string]any
}

type InitPayoutRequest struct {
	OrderID       string
	DealID        string
	AmountKopecks int64
	PartnerID     string // partner-based settlement, entity contractors
	Phone         string // instant-transfer addressing, digits only
	MemberID      string // instant-transfer scheme participant
	FinalPayout   bool
}

type InitPayoutResult struct {
	PayoutID string
	Status   string
	Raw      map[string]any
}

type MemberInfo struct {
	MemberID      string `json:"MemberId"`
	MemberName    string `json:"MemberName"`
	MemberNameRus string `json:"MemberNameRus"`
}

// RegisterPartnerRequest carries the contractor dossier submitted to the
// gateway's partner registration endpoint (client-certificate authenticated).
type RegisterPartnerRequest struct {
	Name              string
	FullName          string
	Inn               string
	Kpp               string
	Ogrn              string
	Okved             string
	Email             string
	Phone             string
	SiteURL           string
	BillingDescriptor string
	City              string
	Zip               string
	Country           string
	Street            string
	BankAccount       string
	BankName          string
	BankBik           string
	CeoFirstName      string
	CeoLastName       string
	CeoPhone          string
	CeoCountry        string
}

type RegisterPartnerResult struct {
	PartnerID string
	Raw       map[string]any
}
