package model

// CheckoutRequest is the DTO for quoting or placing an order.
type CheckoutRequest struct {
	Entries       []CartEntry `json:"entries" validate:"required,min=1,max=100,dive"`
	CouponIDs     []string    `json:"coupon_ids" validate:"max=20,dive,required"`
	RedeemPoints  int64       `json:"redeem_points" validate:"gte=0"`
	PaymentMethod string      `json:"payment_method" validate:"max=64"`
	CustomerName  string      `json:"customer_name" validate:"max=255"`
}

// Quote is the priced preview of a cart.
type Quote struct {
	LineItems      []LineItem     `json:"line_items"`
	Subtotal       int64          `json:"subtotal"`
	Discount       DiscountResult `json:"discount"`
	PointsRedeemed int64          `json:"points_redeemed"`
	Total          int64          `json:"total"`
	PointsEarned   int64          `json:"points_earned"`
}

// AdvanceOrderRequest is the DTO for a staff lifecycle transition.
type AdvanceOrderRequest struct {
	To string `json:"to" validate:"required,oneof=IN_PROGRESS READY"`
}

// DailyStats summarizes a day's orders.
type DailyStats struct {
	DateKey    string           `json:"date_key"`
	OrderCount int64            `json:"order_count"`
	ByState    map[string]int64 `json:"by_state"`
	TotalSales string           `json:"total_sales"`
}

// OrderListQuery is the query string of the staff order board.
type OrderListQuery struct {
	Date  string `query:"date" validate:"omitempty,datekey"`
	State string `query:"state" validate:"omitempty,oneof=PLACED IN_PROGRESS READY"`
	Sort  string `query:"sort" validate:"omitempty,oneof=asc desc"`
}
