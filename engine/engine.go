package engine

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wangablestudio/paysplit/gateway"
	"github.com/wangablestudio/paysplit/receipts"
)

// StatusRank defines the strict total order used for regression detection.
// Ranks only ever move up locally; a lower-ranked inbound status triggers
// reconciliation against the gateway instead of being applied.
var StatusRank = map[string]int{
	"NEW":               0,
	"AUTHORIZED":        1,
	"CONFIRMED":         2,
	"REJECTED":          3,
	"REFUNDED":          4,
	"CANCELED":          5,
	"PAYOUTS_COMPLETED": 6,
}

// Engine owns the payment lifecycle: it is the only writer of Payment rows.
// All collaborators are injected; handlers and the outbox runner call into it.
type Engine struct {
	db       *gorm.DB
	gw       gateway.Client
	receipts receipts.Issuer
	logger   *slog.Logger

	signingPassword string
	notificationURL string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Options struct {
	SigningPassword string
	NotificationURL string
	Logger          *slog.Logger
}

func New(db *gorm.DB, gw gateway.Client, issuer receipts.Issuer, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		db:              db,
		gw:              gw,
		receipts:        issuer,
		logger:          logger,
		signingPassword: opts.SigningPassword,
		notificationURL: opts.NotificationURL,
		locks:           make(map[string]*sync.Mutex),
	}
}

// lock serializes lifecycle mutations per payment id. The gateway retries
// notifications and may deliver them concurrently; the storage layer gives no
// atomic conditional update we can lean on across drivers, so a keyed mutex
// is the serialization boundary.
func (e *Engine) lock(paymentID string) func() {
	e.mu.Lock()
	m, ok := e.locks[paymentID]
	if !ok {
		m = &sync.Mutex{}
		e.locks[paymentID] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Kopecks converts a major-unit decimal amount to gateway minor units.
func Kopecks(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

var nonPhoneChars = regexp.MustCompile(`[^\d+]`)
var nonDigits = regexp.MustCompile(`\D`)

// cleanPhone keeps digits and a leading plus, the format the gateway accepts
// as a payment recipient id.
func cleanPhone(phone string) string {
	return nonPhoneChars.ReplaceAllString(phone, "")
}

// digitsOnly strips everything but digits, the format instant-transfer payout
// addressing requires.
func digitsOnly(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

// fieldString renders a notification field the way the signing codec does, so
// numeric PaymentId values compare equal regardless of JSON decoding type.
func fieldString(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}
