package pricing

import (
	"errors"
	"time"

	"github.com/fairyhunter13/kiosk-order-system/internal/model"
)

var (
	// ErrCouponIneligible is returned when a coupon fails the eligibility rule.
	ErrCouponIneligible = errors.New("coupon is not eligible")

	// ErrCouponNotCombinable is returned when a non-combinable coupon is
	// selected together with another coupon.
	ErrCouponNotCombinable = errors.New("non-combinable coupon cannot be used with other coupons")

	// ErrDuplicateCoupon is returned when the same coupon is selected twice.
	ErrDuplicateCoupon = errors.New("coupon selected more than once")
)

// Eligible reports whether c can be applied to subtotal on the day of now:
// unused, at or above its minimum order and active on that day.
func Eligible(c model.Coupon, subtotal int64, now time.Time) bool {
	if c.Used || subtotal < c.MinOrderValue {
		return false
	}
	return ActiveOn(c, now)
}

// ActiveOn reports whether c is available and within its validity window.
// The window is compared by calendar day in now's location.
func ActiveOn(c model.Coupon, now time.Time) bool {
	if !c.Available {
		return false
	}
	today := startOfDay(now)
	if !c.ValidFrom.IsZero() && today.Before(startOfDay(c.ValidFrom.In(now.Location()))) {
		return false
	}
	if !c.ValidTo.IsZero() && today.After(startOfDay(c.ValidTo.In(now.Location()))) {
		return false
	}
	return true
}

// Toggle applies the caller-side selection rule for adding or removing c.
// Selecting an already selected coupon removes it. Selecting a
// non-combinable coupon clears everything else; selecting a combinable
// coupon clears any non-combinable one.
func Toggle(selected []model.Coupon, c model.Coupon) []model.Coupon {
	out := make([]model.Coupon, 0, len(selected)+1)
	removed := false
	for _, s := range selected {
		if s.ID == c.ID {
			removed = true
			continue
		}
		out = append(out, s)
	}
	if removed {
		return out
	}

	if !c.Combinable {
		return []model.Coupon{c}
	}
	kept := out[:0]
	for _, s := range out {
		if s.Combinable {
			kept = append(kept, s)
		}
	}
	return append(kept, c)
}

// ValidateSelection checks that a submitted selection obeys the combination
// rule and every coupon is eligible for subtotal.
func ValidateSelection(selected []model.Coupon, subtotal int64, now time.Time) error {
	seen := make(map[string]struct{}, len(selected))
	for _, c := range selected {
		if _, dup := seen[c.ID]; dup {
			return ErrDuplicateCoupon
		}
		seen[c.ID] = struct{}{}

		if !c.Combinable && len(selected) > 1 {
			return ErrCouponNotCombinable
		}
		if !Eligible(c, subtotal, now) {
			return ErrCouponIneligible
		}
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
