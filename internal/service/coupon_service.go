package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/internal/pricing"
	"github.com/fairyhunter13/kiosk-order-system/pkg/database"
)

// CouponService manages the caller's coupon wallet and selection.
type CouponService struct {
	tx       TxRunner
	accounts AccountRepositoryInterface
	coupons  CouponRepositoryInterface
	loc      *time.Location
	now      func() time.Time
}

// NewCouponService creates a CouponService. Validity windows are evaluated
// by calendar day in loc.
func NewCouponService(tx TxRunner, accounts AccountRepositoryInterface, coupons CouponRepositoryInterface, loc *time.Location) *CouponService {
	if loc == nil {
		loc = time.UTC
	}
	return &CouponService{tx: tx, accounts: accounts, coupons: coupons, loc: loc, now: time.Now}
}

// Register adds a coupon to the caller's unused set.
// Returns:
//   - ErrCouponNotFound if the coupon doesn't exist
//   - ErrCouponUnavailable if it is disabled or outside its validity window
//   - ErrCouponAlreadyRegistered if the caller registered it before
func (s *CouponService) Register(ctx context.Context, userID, couponID string) (*model.Coupon, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	coupon, err := s.coupons.GetByID(ctx, couponID)
	if err != nil {
		return nil, transient("get coupon", err)
	}
	if !pricing.ActiveOn(*coupon, s.now().In(s.loc)) {
		return nil, ErrCouponUnavailable
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, tx database.TxQuerier) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if account.HasCoupon(couponID) {
			return ErrCouponAlreadyRegistered
		}
		return s.accounts.AddCoupon(ctx, tx, userID, couponID)
	})
	if err != nil {
		return nil, transient("register coupon", err)
	}

	log.Info().Str("user_id", userID).Str("coupon_id", couponID).Msg("coupon registered")
	return coupon, nil
}

// Wallet lists the caller's unused coupons with their selectability for
// subtotal.
func (s *CouponService) Wallet(ctx context.Context, userID string, subtotal int64) ([]model.WalletCoupon, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	account, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, transient("get account", err)
	}
	if len(account.UnusedCouponIDs) == 0 {
		return []model.WalletCoupon{}, nil
	}

	coupons, err := s.coupons.GetByIDs(ctx, account.UnusedCouponIDs)
	if err != nil {
		return nil, transient("load coupons", err)
	}

	now := s.now().In(s.loc)
	wallet := make([]model.WalletCoupon, 0, len(coupons))
	for _, c := range coupons {
		wallet = append(wallet, model.WalletCoupon{Coupon: c, Selectable: pricing.Eligible(c, subtotal, now)})
	}
	return wallet, nil
}

// Toggle applies the selection rule to the caller's current selection.
// Only owned, eligible coupons can be selected; deselecting is always allowed.
func (s *CouponService) Toggle(ctx context.Context, userID string, selected []string, couponID string, subtotal int64) ([]model.Coupon, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	account, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, transient("get account", err)
	}

	ids := append(append([]string{}, selected...), couponID)
	for _, id := range ids {
		if !account.OwnsUnusedCoupon(id) {
			return nil, fmt.Errorf("%w: %s", ErrCouponNotOwned, id)
		}
	}

	current := []model.Coupon{}
	if len(selected) > 0 {
		current, err = s.coupons.GetByIDs(ctx, selected)
		if err != nil {
			return nil, transient("load coupons", err)
		}
	}
	target, err := s.coupons.GetByID(ctx, couponID)
	if err != nil {
		return nil, transient("get coupon", err)
	}

	wasSelected := false
	for _, c := range current {
		if c.ID == couponID {
			wasSelected = true
		}
	}
	if !wasSelected && !pricing.Eligible(*target, subtotal, s.now().In(s.loc)) {
		return nil, ErrCouponIneligible
	}

	next := pricing.Toggle(current, *target)
	if err := pricing.ValidateSelection(next, subtotal, s.now().In(s.loc)); err != nil && !errors.Is(err, pricing.ErrCouponIneligible) {
		return nil, pricingError(err)
	}
	return next, nil
}
