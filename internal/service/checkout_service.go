package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/kiosk-order-system/internal/lifecycle"
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/internal/pricing"
	"github.com/fairyhunter13/kiosk-order-system/pkg/database"
)

// AccountRepositoryInterface defines the interface for account data access.
type AccountRepositoryInterface interface {
	Get(ctx context.Context, userID string) (*model.Account, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, userID string) (*model.Account, error)
	Create(ctx context.Context, account *model.Account) error
	// Settle writes the new points balance and moves consumed coupons from
	// the unused to the used set in a single statement.
	Settle(ctx context.Context, tx database.TxQuerier, userID string, points int64, consumedCouponIDs []string) error
	AddCoupon(ctx context.Context, tx database.TxQuerier, userID, couponID string) error
	SetPaymentMethods(ctx context.Context, tx database.TxQuerier, userID string, methods []model.PaymentMethod) error
}

// CouponRepositoryInterface defines the interface for coupon definition access.
type CouponRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*model.Coupon, error)
	// GetByIDs returns coupons in the order of ids; a missing id is ErrCouponNotFound.
	GetByIDs(ctx context.Context, ids []string) ([]model.Coupon, error)
}

// OrderRepositoryInterface defines the interface for order data access.
type OrderRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, order *model.Order) error
	GetByID(ctx context.Context, id model.OrderID) (*model.Order, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, id model.OrderID) (*model.Order, error)
	UpdateState(ctx context.Context, tx database.TxQuerier, id model.OrderID, state lifecycle.State, updatedAt time.Time) error
	ListByDate(ctx context.Context, dateKey string) ([]*model.Order, error)
	ListByCustomer(ctx context.Context, customerID, dateKey string) ([]*model.Order, error)
	SalesTotal(ctx context.Context, dateKey string) (decimal.Decimal, error)
}

// ObservationSeeder records the first observed state of a new order.
type ObservationSeeder interface {
	Seed(ctx context.Context, tx database.TxQuerier, id model.OrderID, state lifecycle.State) error
}

// CheckoutOptions tunes pricing and the day boundary.
type CheckoutOptions struct {
	EarnRatePercent int64
	Location        *time.Location
	Now             func() time.Time
}

// CheckoutService prices carts and places orders.
type CheckoutService struct {
	tx           TxRunner
	accounts     AccountRepositoryInterface
	coupons      CouponRepositoryInterface
	orders       OrderRepositoryInterface
	observations ObservationSeeder
	sequencer    *OrderSequencer
	ledger       pricing.PointsLedger
	loc          *time.Location
	now          func() time.Time
}

// NewCheckoutService creates a CheckoutService.
func NewCheckoutService(
	tx TxRunner,
	accounts AccountRepositoryInterface,
	coupons CouponRepositoryInterface,
	orders OrderRepositoryInterface,
	observations ObservationSeeder,
	sequencer *OrderSequencer,
	opts CheckoutOptions,
) *CheckoutService {
	if opts.EarnRatePercent <= 0 {
		opts.EarnRatePercent = pricing.DefaultEarnRatePercent
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CheckoutService{
		tx:           tx,
		accounts:     accounts,
		coupons:      coupons,
		orders:       orders,
		observations: observations,
		sequencer:    sequencer,
		ledger:       pricing.NewPointsLedger(opts.EarnRatePercent),
		loc:          opts.Location,
		now:          opts.Now,
	}
}

// Quote prices a cart for the caller without persisting anything.
func (s *CheckoutService) Quote(ctx context.Context, userID string, req *model.CheckoutRequest) (*model.Quote, error) {
	lines, err := s.precheck(userID, req)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, transient("get account", err)
	}
	coupons, err := s.loadCoupons(ctx, req.CouponIDs)
	if err != nil {
		return nil, err
	}
	return s.price(account, lines, coupons, req.RedeemPoints, s.now().In(s.loc))
}

// PlaceOrder confirms payment for a cart. Coupon consumption, points
// settlement, sequence reservation and the order write happen in one
// transaction; on any failure none of them is applied.
func (s *CheckoutService) PlaceOrder(ctx context.Context, userID string, req *model.CheckoutRequest) (*model.Order, error) {
	lines, err := s.precheck(userID, req)
	if err != nil {
		return nil, err
	}
	if req.PaymentMethod == "" {
		return nil, ErrPaymentMethodRequired
	}

	coupons, err := s.loadCoupons(ctx, req.CouponIDs)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	dateKey := model.DateKey(now)

	var order *model.Order
	err = s.tx.RunInTx(ctx, func(ctx context.Context, tx database.TxQuerier) error {
		// 1. Lock the account row (SELECT FOR UPDATE)
		account, err := s.accounts.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		// 2. Payment method must be registered on the account
		if !account.HasPaymentMethod(req.PaymentMethod) {
			return ErrPaymentMethodRequired
		}

		// 3. Price against the locked balance and wallet
		quote, err := s.price(account, lines, coupons, req.RedeemPoints, now)
		if err != nil {
			return err
		}

		// 4. Points and coupons in one update
		balance := s.ledger.ApplyTransaction(account.Points, quote.PointsRedeemed, quote.PointsEarned)
		if err := s.accounts.Settle(ctx, tx, userID, balance, req.CouponIDs); err != nil {
			return fmt.Errorf("settle account: %w", err)
		}

		// 5. Reserve the sequence before writing the order
		id, err := s.sequencer.Reserve(ctx, tx, dateKey)
		if err != nil {
			return err
		}

		name := req.CustomerName
		if name == "" {
			name = account.Name
		}
		order = &model.Order{
			ID:            id,
			CustomerID:    userID,
			CustomerName:  name,
			LineItems:     quote.LineItems,
			CouponIDs:     append([]string{}, req.CouponIDs...),
			Subtotal:      quote.Subtotal,
			DiscountTotal: quote.Discount.TotalDiscount,
			PointsUsed:    quote.PointsRedeemed,
			Total:         quote.Total,
			PointsEarned:  quote.PointsEarned,
			PaymentMethod: req.PaymentMethod,
			CreatedAt:     now,
			UpdatedAt:     now,
			State:         lifecycle.Placed,
		}

		// 6. Insert the order
		if err := s.orders.Insert(ctx, tx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		// 7. Seed the observation record so the READY edge can be proven later
		if err := s.observations.Seed(ctx, tx, id, lifecycle.Placed); err != nil {
			return fmt.Errorf("seed observation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, transient("place order", err)
	}

	log.Info().
		Str("order_id", order.ID.String()).
		Str("customer_id", userID).
		Int64("total", order.Total).
		Int64("points_earned", order.PointsEarned).
		Msg("order placed")
	return order, nil
}

func (s *CheckoutService) precheck(userID string, req *model.CheckoutRequest) ([]model.LineItem, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if req == nil {
		return nil, ErrInvalidRequest
	}
	if req.RedeemPoints < 0 {
		return nil, ErrInvalidPoints
	}
	lines := pricing.Aggregate(req.Entries)
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	return lines, nil
}

func (s *CheckoutService) loadCoupons(ctx context.Context, ids []string) ([]model.Coupon, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	coupons, err := s.coupons.GetByIDs(ctx, ids)
	if err != nil {
		return nil, transient("load coupons", err)
	}
	return coupons, nil
}

// price runs the pricing pipeline for an account. It never mutates anything.
func (s *CheckoutService) price(account *model.Account, lines []model.LineItem, coupons []model.Coupon, redeem int64, now time.Time) (*model.Quote, error) {
	subtotal := pricing.Subtotal(lines)

	for _, c := range coupons {
		if !account.OwnsUnusedCoupon(c.ID) {
			return nil, fmt.Errorf("%w: %s", ErrCouponNotOwned, c.ID)
		}
	}
	if err := pricing.ValidateSelection(coupons, subtotal, now); err != nil {
		return nil, pricingError(err)
	}

	discount := pricing.ComputeDiscount(subtotal, coupons)
	if err := s.ledger.ValidateRedemption(redeem, account.Points, subtotal, discount.TotalDiscount); err != nil {
		return nil, pricingError(err)
	}

	total := pricing.Payable(subtotal, discount.TotalDiscount, redeem)
	return &model.Quote{
		LineItems:      lines,
		Subtotal:       subtotal,
		Discount:       discount,
		PointsRedeemed: redeem,
		Total:          total,
		PointsEarned:   s.ledger.Settle(total),
	}, nil
}

// pricingError maps pricing sentinels onto the service taxonomy.
func pricingError(err error) error {
	switch {
	case errors.Is(err, pricing.ErrCouponNotCombinable):
		return ErrCouponNotCombinable
	case errors.Is(err, pricing.ErrCouponIneligible), errors.Is(err, pricing.ErrDuplicateCoupon):
		return ErrCouponIneligible
	case errors.Is(err, pricing.ErrInvalidPoints):
		return ErrInvalidPoints
	case errors.Is(err, pricing.ErrInsufficientPoints):
		return ErrInsufficientPoints
	case errors.Is(err, pricing.ErrRedemptionExceedsTotal):
		return ErrRedemptionExceedsTotal
	default:
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
}
