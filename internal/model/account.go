package model

// PaymentMethod is a payment option attached to an account.
type PaymentMethod struct {
	Name       string `json:"name"`
	Registered bool   `json:"registered"`
}

// DefaultPaymentMethods is the list a new account starts with.
func DefaultPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		{Name: "Card", Registered: false},
		{Name: "Account", Registered: false},
		{Name: "KakaoPay", Registered: true},
		{Name: "TossPay", Registered: true},
	}
}

// Account is the per-user document: points balance, coupon wallet and
// payment methods.
type Account struct {
	UserID          string          `json:"user_id"`
	Name            string          `json:"name"`
	Points          int64           `json:"points"`
	UnusedCouponIDs []string        `json:"unused_coupon_ids"`
	UsedCouponIDs   []string        `json:"used_coupon_ids"`
	PaymentMethods  []PaymentMethod `json:"payment_methods"`
}

// HasPaymentMethod reports whether name is registered on the account.
func (a *Account) HasPaymentMethod(name string) bool {
	for _, pm := range a.PaymentMethods {
		if pm.Name == name {
			return pm.Registered
		}
	}
	return false
}

// OwnsUnusedCoupon reports whether id is in the unused set.
func (a *Account) OwnsUnusedCoupon(id string) bool {
	for _, c := range a.UnusedCouponIDs {
		if c == id {
			return true
		}
	}
	return false
}

// HasCoupon reports whether id was ever registered to the account.
func (a *Account) HasCoupon(id string) bool {
	if a.OwnsUnusedCoupon(id) {
		return true
	}
	for _, c := range a.UsedCouponIDs {
		if c == id {
			return true
		}
	}
	return false
}

// CreateAccountRequest is the DTO for bootstrapping an account.
type CreateAccountRequest struct {
	Name string `json:"name" query:"name" validate:"omitempty,max=255"`
}

// RegisterPaymentMethodRequest is the DTO for registering a payment method.
type RegisterPaymentMethodRequest struct {
	Name string `json:"name" validate:"required,notblank,max=64"`
}
