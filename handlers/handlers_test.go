package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wangablestudio/paysplit/engine"
	"github.com/wangablestudio/paysplit/gateway"
	"github.com/wangablestudio/paysplit/models"
	"github.com/wangablestudio/paysplit/receipts"
)

const testPassword = "test-password"

func init() {
	gin.SetMode(gin.TestMode)
}

type mockGateway struct {
	initPaymentFn     func(ctx context.Context, req gateway.InitPaymentRequest) (*gateway.InitPaymentResult, error)
	confirmPaymentFn  func(ctx context.Context, paymentID string, amountKopecks int64) (*gateway.ConfirmResult, error)
	getStateFn        func(ctx context.Context, paymentID string, terminal gateway.Terminal) (*gateway.StateResult, error)
	initPayoutFn      func(ctx context.Context, req gateway.InitPayoutRequest) (*gateway.InitPayoutResult, error)
	getPayoutStateFn  func(ctx context.Context, payoutID string) (*gateway.StateResult, error)
	listMembersFn     func(ctx context.Context) ([]gateway.MemberInfo, error)
	registerPartnerFn func(ctx context.Context, req gateway.RegisterPartnerRequest) (*gateway.RegisterPartnerResult, error)
}

var errUnexpectedCall = errors.New("unexpected gateway call")

func (m *mockGateway) InitPayment(ctx context.Context, req gateway.InitPaymentRequest) (*gateway.InitPaymentResult, error) {
	if m.initPaymentFn == nil {
		return nil, errUnexpectedCall
	}
	return m.initPaymentFn(ctx, req)
}

func (m *mockGateway) ConfirmPayment(ctx context.Context, paymentID string, amountKopecks int64) (*gateway.ConfirmResult, error) {
	if m.confirmPaymentFn == nil {
		return nil, errUnexpectedCall
	}
	return m.confirmPaymentFn(ctx, paymentID, amountKopecks)
}

func (m *mockGateway) GetState(ctx context.Context, paymentID string, terminal gateway.Terminal) (*gateway.StateResult, error) {
	if m.getStateFn == nil {
		return nil, errUnexpectedCall
	}
	return m.getStateFn(ctx, paymentID, terminal)
}

func (m *mockGateway) InitPayout(ctx context.Context, req gateway.InitPayoutRequest) (*gateway.InitPayoutResult, error) {
	if m.initPayoutFn == nil {
		return nil, errUnexpectedCall
	}
	return m.initPayoutFn(ctx, req)
}

func (m *mockGateway) GetPayoutState(ctx context.Context, payoutID string) (*gateway.StateResult, error) {
	if m.getPayoutStateFn == nil {
		return nil, errUnexpectedCall
	}
	return m.getPayoutStateFn(ctx, payoutID)
}

func (m *mockGateway) ListMembers(ctx context.Context) ([]gateway.MemberInfo, error) {
	if m.listMembersFn == nil {
		return nil, errUnexpectedCall
	}
	return m.listMembersFn(ctx)
}

func (m *mockGateway) RegisterPartner(ctx context.Context, req gateway.RegisterPartnerRequest) (*gateway.RegisterPartnerResult, error) {
	if m.registerPartnerFn == nil {
		return nil, errUnexpectedCall
	}
	return m.registerPartnerFn(ctx, req)
}

type noopIssuer struct{}

func (noopIssuer) Issue(context.Context, receipts.Receipt) error { return nil }

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Contractor{},
		&models.Member{},
		&models.Payment{},
		&models.Payout{},
		&models.OutboxTask{},
	))
	return db
}

func newTestEngine(t *testing.T, db *gorm.DB, gw gateway.Client) *engine.Engine {
	t.Helper()
	return engine.New(db, gw, noopIssuer{}, engine.Options{
		SigningPassword: testPassword,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}
