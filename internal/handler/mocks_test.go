package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/kiosk-order-system/internal/auth"
	"github.com/fairyhunter13/kiosk-order-system/internal/lifecycle"
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/internal/realtime"
	"github.com/fairyhunter13/kiosk-order-system/internal/service"
	appvalidator "github.com/fairyhunter13/kiosk-order-system/internal/validator"
)

const (
	testSecret    = "test-secret"
	testStaffRole = "staff"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type mockCheckoutService struct {
	quoteFn      func(ctx context.Context, userID string, req *model.CheckoutRequest) (*model.Quote, error)
	placeOrderFn func(ctx context.Context, userID string, req *model.CheckoutRequest) (*model.Order, error)
}

func (m *mockCheckoutService) Quote(ctx context.Context, userID string, req *model.CheckoutRequest) (*model.Quote, error) {
	if m.quoteFn != nil {
		return m.quoteFn(ctx, userID, req)
	}
	return &model.Quote{}, nil
}

func (m *mockCheckoutService) PlaceOrder(ctx context.Context, userID string, req *model.CheckoutRequest) (*model.Order, error) {
	if m.placeOrderFn != nil {
		return m.placeOrderFn(ctx, userID, req)
	}
	return &model.Order{}, nil
}

type mockOrderService struct {
	getForCustomerFn func(ctx context.Context, userID string, id model.OrderID) (*model.Order, error)
	listByDateFn     func(ctx context.Context, dateKey string, filter service.OrderFilter) ([]*model.Order, error)
	listByCustomerFn func(ctx context.Context, userID, dateKey string) ([]*model.Order, error)
	advanceFn        func(ctx context.Context, id model.OrderID, to lifecycle.State) (*model.Order, error)
	dailyStatsFn     func(ctx context.Context, dateKey string) (*model.DailyStats, error)
}

func (m *mockOrderService) GetForCustomer(ctx context.Context, userID string, id model.OrderID) (*model.Order, error) {
	if m.getForCustomerFn != nil {
		return m.getForCustomerFn(ctx, userID, id)
	}
	return nil, service.ErrOrderNotFound
}

func (m *mockOrderService) ListByDate(ctx context.Context, dateKey string, filter service.OrderFilter) ([]*model.Order, error) {
	if m.listByDateFn != nil {
		return m.listByDateFn(ctx, dateKey, filter)
	}
	return []*model.Order{}, nil
}

func (m *mockOrderService) ListByCustomer(ctx context.Context, userID, dateKey string) ([]*model.Order, error) {
	if m.listByCustomerFn != nil {
		return m.listByCustomerFn(ctx, userID, dateKey)
	}
	return []*model.Order{}, nil
}

func (m *mockOrderService) Advance(ctx context.Context, id model.OrderID, to lifecycle.State) (*model.Order, error) {
	if m.advanceFn != nil {
		return m.advanceFn(ctx, id, to)
	}
	return &model.Order{ID: id, State: to}, nil
}

func (m *mockOrderService) DailyStats(ctx context.Context, dateKey string) (*model.DailyStats, error) {
	if m.dailyStatsFn != nil {
		return m.dailyStatsFn(ctx, dateKey)
	}
	return &model.DailyStats{DateKey: dateKey}, nil
}

type mockAccountService struct {
	ensureFn   func(ctx context.Context, userID, name string) (*model.Account, error)
	registerFn func(ctx context.Context, userID, method string) (*model.Account, error)
}

func (m *mockAccountService) Ensure(ctx context.Context, userID, name string) (*model.Account, error) {
	if m.ensureFn != nil {
		return m.ensureFn(ctx, userID, name)
	}
	return &model.Account{UserID: userID, Name: name}, nil
}

func (m *mockAccountService) RegisterPaymentMethod(ctx context.Context, userID, method string) (*model.Account, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, userID, method)
	}
	return &model.Account{UserID: userID}, nil
}

type mockCouponService struct {
	registerFn func(ctx context.Context, userID, couponID string) (*model.Coupon, error)
	walletFn   func(ctx context.Context, userID string, subtotal int64) ([]model.WalletCoupon, error)
	toggleFn   func(ctx context.Context, userID string, selected []string, couponID string, subtotal int64) ([]model.Coupon, error)
}

func (m *mockCouponService) Register(ctx context.Context, userID, couponID string) (*model.Coupon, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, userID, couponID)
	}
	return &model.Coupon{ID: couponID}, nil
}

func (m *mockCouponService) Wallet(ctx context.Context, userID string, subtotal int64) ([]model.WalletCoupon, error) {
	if m.walletFn != nil {
		return m.walletFn(ctx, userID, subtotal)
	}
	return []model.WalletCoupon{}, nil
}

func (m *mockCouponService) Toggle(ctx context.Context, userID string, selected []string, couponID string, subtotal int64) ([]model.Coupon, error) {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, userID, selected, couponID, subtotal)
	}
	return []model.Coupon{}, nil
}

// stubLoader feeds snapshots to the realtime hub.
type stubLoader struct {
	mu     sync.Mutex
	orders map[model.OrderID]*model.Order
	getErr error
}

func (s *stubLoader) set(o *model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

func (s *stubLoader) Get(ctx context.Context, id model.OrderID) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, service.ErrOrderNotFound
	}
	return o, nil
}

// stubPinger stands in for the order store's connection pool.
type stubPinger struct {
	mu    sync.Mutex
	err   error
	pings int
}

func (s *stubPinger) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings++
	return s.err
}

type testEnv struct {
	app      *fiber.App
	checkout *mockCheckoutService
	orders   *mockOrderService
	accounts *mockAccountService
	coupons  *mockCouponService
	pinger   *stubPinger
	loader   *stubLoader
	hub      *realtime.Hub
}

func newTestEnv() *testEnv {
	env := &testEnv{
		checkout: &mockCheckoutService{},
		orders:   &mockOrderService{},
		accounts: &mockAccountService{},
		coupons:  &mockCouponService{},
		pinger:   &stubPinger{},
		loader:   &stubLoader{orders: map[model.OrderID]*model.Order{}},
	}
	env.hub = realtime.NewHub(env.loader)

	v := appvalidator.New()
	orderHandler := NewOrderHandler(env.orders, env.hub, time.UTC)
	orderHandler.now = func() time.Time { return testNow }
	orderHandler.keepAlive = 20 * time.Millisecond
	staffHandler := NewStaffHandler(env.orders, env.hub, v, time.UTC)
	staffHandler.now = func() time.Time { return testNow }
	staffHandler.keepAlive = 20 * time.Millisecond

	env.app = fiber.New()
	env.app.Use(requestid.New())
	Register(env.app, Handlers{
		Health:   NewHealthHandler(env.pinger),
		Account:  NewAccountHandler(env.accounts, v),
		Coupon:   NewCouponHandler(env.coupons, v),
		Checkout: NewCheckoutHandler(env.checkout, v),
		Order:    orderHandler,
		Staff:    staffHandler,
	}, testSecret, testStaffRole)
	return env
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := auth.Sign([]byte(testSecret), userID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a request and returns the status and raw body.
func (e *testEnv) do(t *testing.T, method, path, body, bearer string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := e.app.Test(req, 3000)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decodeError(t *testing.T, raw []byte) string {
	t.Helper()
	var result map[string]string
	require.NoError(t, json.Unmarshal(raw, &result))
	return result["error"]
}

