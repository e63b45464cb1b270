package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/wangablestudio/paysplit/config"
)

// Client is the typed surface of the acquiring processor. The engine only
// talks to this interface; tests substitute a mock.
type Client interface {
	InitPayment(ctx context.Context, req InitPaymentRequest) (*InitPaymentResult, error)
	ConfirmPayment(ctx context.Context, paymentID string, amountKopecks int64) (*ConfirmResult, error)
	GetState(ctx context.Context, paymentID string, terminal Terminal) (*StateResult, error)
	InitPayout(ctx context.Context, req InitPayoutRequest) (*InitPayoutResult, error)
	GetPayoutState(ctx context.Context, payoutID string) (*StateResult, error)
	ListMembers(ctx context.Context) ([]MemberInfo, error)
	RegisterPartner(ctx context.Context, req RegisterPartnerRequest) (*RegisterPartnerResult, error)
}

type HTTPClient struct {
	baseURL           string
	terminalKey       string
	payoutTerminalKey string
	password          string
	httpClient        *http.Client
	registerClient    *http.Client // carries the partner-registration client certificate
	logger            *slog.Logger
}

// NewClient builds the production client from config. The partner client
// certificate is optional; RegisterPartner fails at call time if it was not
// configured.
func NewClient(cfg *config.Config, logger *slog.Logger) (Client, error) {
	c := &HTTPClient{
		baseURL:           cfg.GatewayBaseURL,
		terminalKey:       cfg.TerminalKey,
		payoutTerminalKey: cfg.TerminalKeyPayout,
		password:          cfg.TerminalPassword,
		httpClient:        &http.Client{Timeout: cfg.GatewayTimeout},
		logger:            logger,
	}

	if cfg.PartnerCertFile != "" && cfg.PartnerCertKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.PartnerCertFile, cfg.PartnerCertKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load partner client certificate: %w", err)
		}
		c.registerClient = &http.Client{
			Timeout: cfg.GatewayTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
			},
		}
	}

	return c, nil
}

func (c *HTTPClient) terminal(t Terminal) string {
	if t == TerminalPayout {
		return c.payoutTerminalKey
	}
	return c.terminalKey
}

// post signs the payload, sends it and returns the decoded body. Success=false
// comes back as *Error; transport failures as wrapped plain errors. No retries
// here — the gateway's own notification retries are the recovery path.
func (c *HTTPClient) post(ctx context.Context, client *http.Client, path string, payload map[string]any) (map[string]any, []byte, error) {
	payload["Token"] = Sign(payload, c.password)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("gateway request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("unexpected gateway response for %s: %w", path, err)
	}

	var rawMap map[string]any
	_ = json.Unmarshal(raw, &rawMap)

	if !env.Success {
		c.logger.ErrorContext(ctx, "gateway call rejected",
			"path", path, "code", env.ErrorCode, "message", env.Message, "details", env.Details)
		return rawMap, raw, &Error{Code: env.ErrorCode, Message: env.Message}
	}

	return rawMap, raw, nil
}

func (c *HTTPClient) InitPayment(ctx context.Context, req InitPaymentRequest) (*InitPaymentResult, error) {
	payload := map[string]any{
		"TerminalKey":        c.terminalKey,
		"Amount":             req.AmountKopecks,
		"OrderId":            req.OrderID,
		"Description":        req.Description,
		"CreateDealWithType": "NN",
		"PaymentRecipientId": req.RecipientPhone,
		"NotificationURL":    req.NotificationURL,
		"DATA": map[string]any{
			"Phone": req.RecipientPhone,
			"Email": req.Email,
		},
	}

	rawMap, raw, err := c.post(ctx, c.httpClient, "/v2/Init", payload)
	if err != nil {
		return nil, err
	}

	var body struct {
		PaymentId        flexString `json:"PaymentId"`
		Status           string     `json:"Status"`
		PaymentURL       string     `json:"PaymentURL"`
		SpAccumulationId string     `json:"SpAccumulationId"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("unexpected init response: %w", err)
	}

	return &InitPaymentResult{
		PaymentID:  string(body.PaymentId),
		Status:     body.Status,
		PaymentURL: body.PaymentURL,
		DealID:     body.SpAccumulationId,
		Raw:        rawMap,
	}, nil
}

func (c *HTTPClient) ConfirmPayment(ctx context.Context, paymentID string, amountKopecks int64) (*ConfirmResult, error) {
	payload := map[string]any{
		"TerminalKey": c.terminalKey,
		"PaymentId":   paymentID,
		"Amount":      amountKopecks,
	}

	rawMap, raw, err := c.post(ctx, c.httpClient, "/v2/Confirm", payload)
	if err != nil {
		return nil, err
	}

	var body struct {
		Status string `json:"Status"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("unexpected confirm response: %w", err)
	}

	return &ConfirmResult{Status: body.Status, Raw: rawMap}, nil
}

func (c *HTTPClient) GetState(ctx context.Context, paymentID string, terminal Terminal) (*StateResult, error) {
	payload := map[string]any{
		"TerminalKey": c.terminal(terminal),
		"PaymentId":   paymentID,
	}

	rawMap, raw, err := c.post(ctx, c.httpClient, "/v2/GetState", payload)
	if err != nil {
		return nil, err
	}
	return decodeState(rawMap, raw)
}

func (c *HTTPClient) InitPayout(ctx context.Context, req InitPayoutRequest) (*InitPayoutResult, error) {
	payload := map[string]any{
		"TerminalKey":        c.payoutTerminalKey,
		"DealId":             req.DealID,
		"Amount":             req.AmountKopecks,
		"OrderId":            req.OrderID,
		"PaymentRecipientId": "",
	}
	if req.PartnerID != "" {
		payload["PartnerId"] = req.PartnerID
	}
	if req.Phone != "" {
		payload["Phone"] = req.Phone
		payload["PaymentRecipientId"] = req.Phone
	}
	if req.MemberID != "" {
		payload["SbpMemberId"] = req.MemberID
	}
	if req.FinalPayout {
		payload["FinalPayout"] = true
	}

	rawMap, raw, err := c.post(ctx, c.httpClient, "/e2c/v2/Init", payload)
	if err != nil {
		return nil, err
	}

	var body struct {
		PaymentId flexString `json:"PaymentId"`
		Status    string     `json:"Status"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("unexpected payout init response: %w", err)
	}

	return &InitPayoutResult{
		PayoutID: string(body.PaymentId),
		Status:   body.Status,
		Raw:      rawMap,
	}, nil
}

// GetPayoutState triggers/queries the payout on the E2C terminal. The
// processor uses the same call both to execute a registered payout and to
// report its state.
func (c *HTTPClient) GetPayoutState(ctx context.Context, payoutID string) (*StateResult, error) {
	payload := map[string]any{
		"TerminalKey": c.payoutTerminalKey,
		"PaymentId":   payoutID,
	}

	rawMap, raw, err := c.post(ctx, c.httpClient, "/e2c/v2/Payment", payload)
	if err != nil {
		return nil, err
	}
	return decodeState(rawMap, raw)
}

func (c *HTTPClient) ListMembers(ctx context.Context) ([]MemberInfo, error) {
	payload := map[string]any{
		"TerminalKey": c.terminalKey,
	}

	_, raw, err := c.post(ctx, c.httpClient, "/a2c/sbp/GetSbpMembers", payload)
	if err != nil {
		return nil, err
	}

	var body struct {
		Members []MemberInfo `json:"Members"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("unexpected members response: %w", err)
	}
	return body.Members, nil
}

func (c *HTTPClient) RegisterPartner(ctx context.Context, req RegisterPartnerRequest) (*RegisterPartnerResult, error) {
	if c.registerClient == nil {
		return nil, fmt.Errorf("partner registration requires a client certificate; none configured")
	}

	payload := map[string]any{
		"TerminalKey":       c.terminalKey,
		"Name":              req.Name,
		"FullName":          req.FullName,
		"Inn":               req.Inn,
		"Kpp":               req.Kpp,
		"Ogrn":              req.Ogrn,
		"Okved":             req.Okved,
		"Email":             req.Email,
		"Phone":             req.Phone,
		"SiteUrl":           req.SiteURL,
		"BillingDescriptor": req.BillingDescriptor,
		"Addresses": []map[string]any{{
			"Type":    "legal",
			"Zip":     req.Zip,
			"Country": req.Country,
			"City":    req.City,
			"Street":  req.Street,
		}},
		"BankAccount": map[string]any{
			"Account": req.BankAccount,
			"Name":    req.BankName,
			"Bik":     req.BankBik,
		},
		"Ceo": map[string]any{
			"FirstName": req.CeoFirstName,
			"LastName":  req.CeoLastName,
			"Phone":     req.CeoPhone,
			"Country":   req.CeoCountry,
		},
	}

	rawMap, raw, err := c.post(ctx, c.registerClient, "/sm-register/register", payload)
	if err != nil {
		return nil, err
	}

	var body struct {
		Code      flexString `json:"Code"`
		PartnerId flexString `json:"PartnerId"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("unexpected registration response: %w", err)
	}

	partnerID := string(body.PartnerId)
	if partnerID == "" {
		partnerID = string(body.Code)
	}
	return &RegisterPartnerResult{PartnerID: partnerID, Raw: rawMap}, nil
}

func decodeState(rawMap map[string]any, raw []byte) (*StateResult, error) {
	var body struct {
		Status  string     `json:"Status"`
		OrderId string     `json:"OrderId"`
		Amount  flexString `json:"Amount"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("unexpected state response: %w", err)
	}

	amount, _ := strconv.ParseInt(string(body.Amount), 10, 64)
	return &StateResult{
		Status:        body.Status,
		OrderID:       body.OrderId,
		AmountKopecks: amount,
		Raw:           rawMap,
	}, nil
}
