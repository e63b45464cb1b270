package receipts

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(srv *httptest.Server) *HTTPIssuer {
	return &HTTPIssuer{
		url:              srv.URL,
		publicID:         "public-id",
		apiSecret:        "api-secret",
		inn:              "7700000000",
		calculationPlace: "example.com",
		httpClient:       srv.Client(),
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestIssueSendsTwoLineReceipt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "public-id", user)
		assert.Equal(t, "api-secret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "7700000000", body["Inn"])
		assert.Equal(t, "Income", body["Type"])
		assert.Equal(t, "100001", body["InvoiceId"])

		cr, ok := body["CustomerReceipt"].(map[string]any)
		require.True(t, ok)
		items, ok := cr["Items"].([]any)
		require.True(t, ok)
		require.Len(t, items, 2)
		assert.Equal(t, "Company share", items[0].(map[string]any)["label"])
		assert.Equal(t, "Contractor share", items[1].(map[string]any)["label"])
		assert.Equal(t, "ivanov@example.com", cr["email"])
		assert.Equal(t, "79001234567", cr["phone"])

		amounts, ok := cr["amounts"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "1000", amounts["electronic"])

		json.NewEncoder(w).Encode(map[string]any{"Success": true})
	}))
	defer srv.Close()

	err := newTestIssuer(srv).Issue(context.Background(), Receipt{
		InvoiceID:        "100001",
		Email:            "ivanov@example.com",
		Phone:            "79001234567",
		CompanyAmount:    decimal.NewFromInt(300),
		ContractorAmount: decimal.NewFromInt(700),
		TotalAmount:      decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
}

func TestIssueHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newTestIssuer(srv).Issue(context.Background(), Receipt{InvoiceID: "100001"})
	assert.Error(t, err)
}

func TestIssueDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"Success": false, "Message": "invalid inn"})
	}))
	defer srv.Close()

	err := newTestIssuer(srv).Issue(context.Background(), Receipt{InvoiceID: "100001"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid inn")
}
