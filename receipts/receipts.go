package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/wangablestudio/paysplit/config"
)

// Issuer emits a fiscal receipt to the billing service after a payment is
// confirmed. Issuance is best-effort: a failed receipt never unwinds
// settlement state.
type Issuer interface {
	Issue(ctx context.Context, rcpt Receipt) error
}

// Receipt is the two-line breakdown of a confirmed split payment.
type Receipt struct {
	InvoiceID        string
	Email            string
	Phone            string // digits only
	CompanyAmount    decimal.Decimal
	ContractorAmount decimal.Decimal
	TotalAmount      decimal.Decimal
}

type HTTPIssuer struct {
	url              string
	publicID         string
	apiSecret        string
	inn              string
	calculationPlace string
	httpClient       *http.Client
	logger           *slog.Logger
}

func NewIssuer(cfg *config.Config, logger *slog.Logger) Issuer {
	return &HTTPIssuer{
		url:              cfg.ReceiptURL,
		publicID:         cfg.ReceiptPublicID,
		apiSecret:        cfg.ReceiptAPISecret,
		inn:              cfg.ReceiptInn,
		calculationPlace: cfg.CalculationPlace,
		httpClient:       &http.Client{Timeout: cfg.GatewayTimeout},
		logger:           logger,
	}
}

func (i *HTTPIssuer) Issue(ctx context.Context, rcpt Receipt) error {
	item := func(label string, amount decimal.Decimal) map[string]any {
		return map[string]any{
			"label":    label,
			"price":    amount,
			"quantity": 1,
			"amount":   amount,
			"vat":      0,
			"method":   4,
			"object":   4,
		}
	}

	body := map[string]any{
		"Inn":  i.inn,
		"Type": "Income",
		"CustomerReceipt": map[string]any{
			"Items": []map[string]any{
				item("Company share", rcpt.CompanyAmount),
				item("Contractor share", rcpt.ContractorAmount),
			},
			"calculationPlace": i.calculationPlace,
			"taxationSystem":   1,
			"email":            rcpt.Email,
			"phone":            rcpt.Phone,
			"amounts": map[string]any{
				"electronic":     rcpt.TotalAmount,
				"advancePayment": 0,
				"credit":         0,
				"provision":      0,
			},
		},
		"InvoiceId": rcpt.InvoiceID,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.SetBasicAuth(i.publicID, i.apiSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("receipt request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("receipt service returned %d: %s", resp.StatusCode, raw)
	}

	var out struct {
		Success bool   `json:"Success"`
		Message string `json:"Message"`
	}
	if err := json.Unmarshal(raw, &out); err == nil && !out.Success && out.Message != "" {
		return fmt.Errorf("receipt service declined: %s", out.Message)
	}

	i.logger.InfoContext(ctx, "fiscal receipt issued", "invoice_id", rcpt.InvoiceID)
	return nil
}
