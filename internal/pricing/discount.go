package pricing

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/kiosk-order-system/internal/model"
)

var hundred = decimal.NewFromInt(100)

// ComputeDiscount applies the selected coupons to subtotal.
//
// FIXED coupons go first, in selection order, each reducing the running
// remainder. PERCENT coupons then apply to what is left. The total is clamped
// to [0, subtotal]. Coupons with a malformed value or unknown type are skipped
// and logged; they never affect the other coupons.
func ComputeDiscount(subtotal int64, coupons []model.Coupon) model.DiscountResult {
	result := model.DiscountResult{Breakdown: []model.CouponDiscount{}}
	if subtotal < 0 {
		subtotal = 0
	}

	var fixed, percent []model.Coupon
	for _, c := range coupons {
		switch c.DiscountType {
		case model.DiscountFixed:
			fixed = append(fixed, c)
		case model.DiscountPercent:
			percent = append(percent, c)
		default:
			skip(&result, c, "unknown discount type")
		}
	}

	remaining := decimal.NewFromInt(subtotal)
	total := decimal.Zero

	for _, c := range fixed {
		value, ok := discountValue(c)
		if !ok {
			skip(&result, c, "invalid discount value")
			continue
		}
		amount := value
		if limit, capped := maxDiscount(c); capped {
			amount = decimal.Min(amount, limit)
		}
		amount = amount.Floor()

		result.Breakdown = append(result.Breakdown, breakdown(c, amount))
		remaining = remaining.Sub(amount)
		total = total.Add(amount)
	}

	for _, c := range percent {
		value, ok := discountValue(c)
		if !ok {
			skip(&result, c, "invalid discount value")
			continue
		}
		base := decimal.Max(remaining, decimal.Zero)
		amount := base.Mul(value).Div(hundred).Floor()
		if limit, capped := maxDiscount(c); capped {
			amount = decimal.Min(amount, limit.Floor())
		}

		result.Breakdown = append(result.Breakdown, breakdown(c, amount))
		remaining = remaining.Sub(amount)
		total = total.Add(amount)
	}

	total = decimal.Min(total, decimal.NewFromInt(subtotal))
	total = decimal.Max(total, decimal.Zero)
	result.TotalDiscount = total.IntPart()
	return result
}

func discountValue(c model.Coupon) (decimal.Decimal, bool) {
	v, err := decimal.NewFromString(strings.TrimSpace(c.DiscountValue))
	if err != nil || !v.IsPositive() {
		return decimal.Zero, false
	}
	return v, true
}

// maxDiscount returns the coupon's cap. Absent, unparsable or non-positive
// caps mean uncapped.
func maxDiscount(c model.Coupon) (decimal.Decimal, bool) {
	raw := strings.TrimSpace(c.MaxDiscountValue)
	if raw == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || !v.IsPositive() {
		return decimal.Zero, false
	}
	return v, true
}

func breakdown(c model.Coupon, amount decimal.Decimal) model.CouponDiscount {
	return model.CouponDiscount{
		CouponID:     c.ID,
		DiscountType: c.DiscountType,
		Amount:       amount.IntPart(),
	}
}

func skip(result *model.DiscountResult, c model.Coupon, reason string) {
	log.Warn().
		Str("coupon_id", c.ID).
		Str("discount_type", string(c.DiscountType)).
		Str("discount_value", c.DiscountValue).
		Msg("skipping coupon: " + reason)
	result.Skipped = append(result.Skipped, c.ID)
}
