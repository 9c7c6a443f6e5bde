package model

import "time"

// DiscountType distinguishes fixed-amount from percentage coupons.
type DiscountType string

const (
	DiscountFixed   DiscountType = "FIXED"
	DiscountPercent DiscountType = "PERCENT"
)

// Coupon is a coupon definition as stored in the catalog.
// DiscountValue and MaxDiscountValue hold the raw decimal strings as persisted;
// an empty MaxDiscountValue means no cap.
type Coupon struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Description      string       `json:"description,omitempty"`
	DiscountType     DiscountType `json:"discount_type"`
	DiscountValue    string       `json:"discount_value"`
	MinOrderValue    int64        `json:"min_order_value"`
	MaxDiscountValue string       `json:"max_discount_value,omitempty"`
	ValidFrom        time.Time    `json:"valid_from"`
	ValidTo          time.Time    `json:"valid_to"`
	Combinable       bool         `json:"combinable"`
	Available        bool         `json:"available"`
	Public           bool         `json:"public"`
	Used             bool         `json:"used"`
}

// CouponDiscount is the amount a single coupon contributed.
type CouponDiscount struct {
	CouponID     string       `json:"coupon_id"`
	DiscountType DiscountType `json:"discount_type"`
	Amount       int64        `json:"amount"`
}

// DiscountResult is the outcome of a discount computation.
type DiscountResult struct {
	TotalDiscount int64            `json:"total_discount"`
	Breakdown     []CouponDiscount `json:"breakdown"`
	Skipped       []string         `json:"skipped,omitempty"`
}

// WalletCoupon is an unused coupon with its selectability for a subtotal.
type WalletCoupon struct {
	Coupon
	Selectable bool `json:"selectable"`
}

// RegisterCouponRequest is the DTO for adding a coupon to the caller's wallet.
type RegisterCouponRequest struct {
	CouponID string `json:"coupon_id" validate:"required,notblank,max=255"`
}

// ToggleCouponRequest is the DTO for toggling a coupon in a selection.
type ToggleCouponRequest struct {
	Selected []string `json:"selected" validate:"max=20,dive,required"`
	CouponID string   `json:"coupon_id" validate:"required,notblank,max=255"`
	Subtotal int64    `json:"subtotal" validate:"gte=0"`
}
