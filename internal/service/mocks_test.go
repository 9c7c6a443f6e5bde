package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/kiosk-order-system/internal/lifecycle"
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/pkg/database"
)

// mockRunner is a TxRunner that runs fn once against a no-op querier.
type mockRunner struct {
	calls int
	err   error
}

func (m *mockRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, tx database.TxQuerier) error) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	return fn(ctx, &nopQuerier{})
}

// nopQuerier satisfies database.TxQuerier for repositories that are mocked anyway.
type nopQuerier struct{}

func (nopQuerier) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (nopQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }

func (nopQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

// mockAccountRepository is a mock implementation of AccountRepositoryInterface.
type mockAccountRepository struct {
	getFn               func(ctx context.Context, userID string) (*model.Account, error)
	getForUpdateFn      func(ctx context.Context, tx database.TxQuerier, userID string) (*model.Account, error)
	createFn            func(ctx context.Context, account *model.Account) error
	settleFn            func(ctx context.Context, tx database.TxQuerier, userID string, points int64, consumed []string) error
	addCouponFn         func(ctx context.Context, tx database.TxQuerier, userID, couponID string) error
	setPaymentMethodsFn func(ctx context.Context, tx database.TxQuerier, userID string, methods []model.PaymentMethod) error
}

func (m *mockAccountRepository) Get(ctx context.Context, userID string) (*model.Account, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, ErrAccountNotFound
}

func (m *mockAccountRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, userID string) (*model.Account, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(ctx, tx, userID)
	}
	return nil, ErrAccountNotFound
}

func (m *mockAccountRepository) Create(ctx context.Context, account *model.Account) error {
	if m.createFn != nil {
		return m.createFn(ctx, account)
	}
	return nil
}

func (m *mockAccountRepository) Settle(ctx context.Context, tx database.TxQuerier, userID string, points int64, consumed []string) error {
	if m.settleFn != nil {
		return m.settleFn(ctx, tx, userID, points, consumed)
	}
	return nil
}

func (m *mockAccountRepository) AddCoupon(ctx context.Context, tx database.TxQuerier, userID, couponID string) error {
	if m.addCouponFn != nil {
		return m.addCouponFn(ctx, tx, userID, couponID)
	}
	return nil
}

func (m *mockAccountRepository) SetPaymentMethods(ctx context.Context, tx database.TxQuerier, userID string, methods []model.PaymentMethod) error {
	if m.setPaymentMethodsFn != nil {
		return m.setPaymentMethodsFn(ctx, tx, userID, methods)
	}
	return nil
}

// mockCouponRepository serves coupons from a map.
type mockCouponRepository struct {
	coupons map[string]model.Coupon
	err     error
}

func (m *mockCouponRepository) GetByID(ctx context.Context, id string) (*model.Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.coupons[id]
	if !ok {
		return nil, ErrCouponNotFound
	}
	return &c, nil
}

func (m *mockCouponRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Coupon, error) {
	out := make([]model.Coupon, 0, len(ids))
	for _, id := range ids {
		c, err := m.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

// mockOrderRepository is a mock implementation of OrderRepositoryInterface.
type mockOrderRepository struct {
	insertFn         func(ctx context.Context, tx database.TxQuerier, order *model.Order) error
	getByIDFn        func(ctx context.Context, id model.OrderID) (*model.Order, error)
	getForUpdateFn   func(ctx context.Context, tx database.TxQuerier, id model.OrderID) (*model.Order, error)
	updateStateFn    func(ctx context.Context, tx database.TxQuerier, id model.OrderID, state lifecycle.State, updatedAt time.Time) error
	listByDateFn     func(ctx context.Context, dateKey string) ([]*model.Order, error)
	listByCustomerFn func(ctx context.Context, customerID, dateKey string) ([]*model.Order, error)
	salesTotalFn     func(ctx context.Context, dateKey string) (decimal.Decimal, error)
}

func (m *mockOrderRepository) Insert(ctx context.Context, tx database.TxQuerier, order *model.Order) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, order)
	}
	return nil
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id model.OrderID) (*model.Order, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ErrOrderNotFound
}

func (m *mockOrderRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id model.OrderID) (*model.Order, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(ctx, tx, id)
	}
	return nil, ErrOrderNotFound
}

func (m *mockOrderRepository) UpdateState(ctx context.Context, tx database.TxQuerier, id model.OrderID, state lifecycle.State, updatedAt time.Time) error {
	if m.updateStateFn != nil {
		return m.updateStateFn(ctx, tx, id, state, updatedAt)
	}
	return nil
}

func (m *mockOrderRepository) ListByDate(ctx context.Context, dateKey string) ([]*model.Order, error) {
	if m.listByDateFn != nil {
		return m.listByDateFn(ctx, dateKey)
	}
	return nil, nil
}

func (m *mockOrderRepository) ListByCustomer(ctx context.Context, customerID, dateKey string) ([]*model.Order, error) {
	if m.listByCustomerFn != nil {
		return m.listByCustomerFn(ctx, customerID, dateKey)
	}
	return nil, nil
}

func (m *mockOrderRepository) SalesTotal(ctx context.Context, dateKey string) (decimal.Decimal, error) {
	if m.salesTotalFn != nil {
		return m.salesTotalFn(ctx, dateKey)
	}
	return decimal.Zero, nil
}

// mockCounterRepository is a mock implementation of CounterRepositoryInterface.
type mockCounterRepository struct {
	reserveFn func(ctx context.Context, tx database.TxQuerier, dateKey string) (int64, error)
}

func (m *mockCounterRepository) Reserve(ctx context.Context, tx database.TxQuerier, dateKey string) (int64, error) {
	if m.reserveFn != nil {
		return m.reserveFn(ctx, tx, dateKey)
	}
	return 0, nil
}

// mockSeeder is a mock implementation of ObservationSeeder.
type mockSeeder struct {
	seeded []model.OrderID
	err    error
}

func (m *mockSeeder) Seed(ctx context.Context, tx database.TxQuerier, id model.OrderID, state lifecycle.State) error {
	if m.err != nil {
		return m.err
	}
	m.seeded = append(m.seeded, id)
	return nil
}

// mockRecorder records observed states and reports whether a ready
// notification was queued.
type mockRecorder struct {
	calls    []lifecycle.State
	recordFn func(ctx context.Context, tx database.TxQuerier, id model.OrderID, customerID string, current lifecycle.State) (bool, error)
}

func (m *mockRecorder) Record(ctx context.Context, tx database.TxQuerier, id model.OrderID, customerID string, current lifecycle.State) (bool, error) {
	m.calls = append(m.calls, current)
	if m.recordFn != nil {
		return m.recordFn(ctx, tx, id, customerID, current)
	}
	return false, nil
}

// mockDeliverer records delivery attempts.
type mockDeliverer struct {
	calls     []lifecycle.PendingNotification
	deliverFn func(ctx context.Context, p lifecycle.PendingNotification) error
}

func (m *mockDeliverer) Deliver(ctx context.Context, p lifecycle.PendingNotification) error {
	m.calls = append(m.calls, p)
	if m.deliverFn != nil {
		return m.deliverFn(ctx, p)
	}
	return nil
}
