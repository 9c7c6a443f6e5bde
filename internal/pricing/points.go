package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPoints is returned for a redemption that is not a positive integer.
	ErrInvalidPoints = errors.New("points must be a positive integer")

	// ErrInsufficientPoints is returned when a redemption exceeds the balance.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrRedemptionExceedsTotal is returned when a redemption exceeds the
	// amount still payable after discounts.
	ErrRedemptionExceedsTotal = errors.New("points redemption exceeds payable total")
)

// DefaultEarnRatePercent is the share of a paid total credited back as points.
const DefaultEarnRatePercent = 2

// PointsLedger computes redemptions, earnings and resulting balances.
type PointsLedger struct {
	earnRate decimal.Decimal
}

// NewPointsLedger creates a ledger crediting earnRatePercent of each paid total.
func NewPointsLedger(earnRatePercent int64) PointsLedger {
	return PointsLedger{earnRate: decimal.NewFromInt(earnRatePercent).Div(hundred)}
}

// Redeem validates a redemption request against the available balance.
func (PointsLedger) Redeem(requested, available int64) (int64, error) {
	if requested <= 0 {
		return 0, ErrInvalidPoints
	}
	if requested > available {
		return 0, ErrInsufficientPoints
	}
	return requested, nil
}

// Settle returns the points earned on a paid total, rounded up.
func (l PointsLedger) Settle(total int64) int64 {
	if total <= 0 {
		return 0
	}
	return decimal.NewFromInt(total).Mul(l.earnRate).Ceil().IntPart()
}

// ApplyTransaction returns the balance after redeeming and earning on one order.
func (PointsLedger) ApplyTransaction(available, redeemed, earned int64) int64 {
	return available - redeemed + earned
}

// ValidateRedemption checks an optional redemption (zero means none) against
// the balance and the amount left after discounts.
func (l PointsLedger) ValidateRedemption(redeemed, available, subtotal, discount int64) error {
	if redeemed == 0 {
		return nil
	}
	if _, err := l.Redeem(redeemed, available); err != nil {
		return err
	}
	if redeemed > subtotal-discount {
		return ErrRedemptionExceedsTotal
	}
	return nil
}

// Payable is the final amount due, never negative.
func Payable(subtotal, discount, redeemed int64) int64 {
	p := subtotal - discount - redeemed
	if p < 0 {
		return 0
	}
	return p
}

// ParsePoints parses a user-entered redemption amount.
func ParsePoints(raw string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !d.IsInteger() || !d.IsPositive() {
		return 0, ErrInvalidPoints
	}
	return d.IntPart(), nil
}
