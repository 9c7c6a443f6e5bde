package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/kiosk-order-system/internal/lifecycle"
)

// DateKeyLayout formats a calendar day as YYMMDD.
const DateKeyLayout = "060102"

// ErrInvalidOrderID is returned when an order id string cannot be parsed.
var ErrInvalidOrderID = errors.New("invalid order id")

// DateKey returns the YYMMDD key of t in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ValidDateKey reports whether key is a well-formed YYMMDD day key.
func ValidDateKey(key string) bool {
	if len(key) != len(DateKeyLayout) {
		return false
	}
	_, err := time.Parse(DateKeyLayout, key)
	return err == nil
}

// OrderID identifies an order by its day and per-day sequence.
type OrderID struct {
	DateKey  string `json:"date_key"`
	Sequence int64  `json:"sequence"`
}

func (id OrderID) String() string {
	return id.DateKey + "-" + strconv.FormatInt(id.Sequence, 10)
}

// ParseOrderID parses the "YYMMDD-seq" form produced by OrderID.String.
func ParseOrderID(raw string) (OrderID, error) {
	dateKey, seq, ok := strings.Cut(raw, "-")
	if !ok {
		return OrderID{}, fmt.Errorf("%w: %q", ErrInvalidOrderID, raw)
	}
	return NewOrderID(dateKey, seq)
}

// NewOrderID builds an OrderID from its two textual parts.
func NewOrderID(dateKey, seq string) (OrderID, error) {
	if !ValidDateKey(dateKey) {
		return OrderID{}, fmt.Errorf("%w: date key %q", ErrInvalidOrderID, dateKey)
	}
	n, err := strconv.ParseInt(seq, 10, 64)
	if err != nil || n < 0 {
		return OrderID{}, fmt.Errorf("%w: sequence %q", ErrInvalidOrderID, seq)
	}
	return OrderID{DateKey: dateKey, Sequence: n}, nil
}

// DailyCounter is the per-day sequence counter.
type DailyCounter struct {
	DateKey      string `json:"date_key"`
	NextSequence int64  `json:"next_sequence"`
}

// Order is a placed order.
type Order struct {
	ID            OrderID         `json:"id"`
	CustomerID    string          `json:"customer_id"`
	CustomerName  string          `json:"customer_name"`
	LineItems     []LineItem      `json:"line_items"`
	CouponIDs     []string        `json:"coupon_ids"`
	Subtotal      int64           `json:"subtotal"`
	DiscountTotal int64           `json:"discount_total"`
	PointsUsed    int64           `json:"points_used"`
	Total         int64           `json:"total"`
	PointsEarned  int64           `json:"points_earned"`
	PaymentMethod string          `json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	State         lifecycle.State `json:"state"`
}

// MenuLine is one line of the persisted order document.
// Quantity and Price (the line total) are decimal strings.
type MenuLine struct {
	MenuID   string   `json:"menuId"`
	MenuName string   `json:"menuName"`
	Options  []string `json:"options"`
	Quantity string   `json:"quantity"`
	Price    string   `json:"price"`
}

// OrderDocument is the persisted shape of an order. Numeric fields are
// decimal strings and timestamps are epoch seconds.
type OrderDocument struct {
	CustomerID    string     `json:"customerId"`
	CustomerName  string     `json:"customerName"`
	MenuList      []MenuLine `json:"menuList"`
	CouponIDs     []string   `json:"couponIds"`
	Subtotal      string     `json:"subtotal"`
	DiscountTotal string     `json:"discountTotal"`
	PointsUsed    string     `json:"pointsUsed"`
	Total         string     `json:"total"`
	PointsEarned  string     `json:"pointsEarned"`
	PaymentMethod string     `json:"paymentMethod"`
	CreatedAt     int64      `json:"createdAt"`
	UpdatedAt     int64      `json:"updatedAt"`
	IsCompleted   bool       `json:"isCompleted"`
	IsStarted     bool       `json:"isStarted"`
}

// Document formats the order for persistence.
func (o *Order) Document() OrderDocument {
	lines := make([]MenuLine, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		lines = append(lines, MenuLine{
			MenuID:   li.ProductID,
			MenuName: li.ProductName,
			Options:  li.Options(),
			Quantity: FormatAmount(li.Quantity),
			Price:    FormatAmount(li.TotalPrice()),
		})
	}
	started, completed := o.State.Flags()

	return OrderDocument{
		CustomerID:    o.CustomerID,
		CustomerName:  o.CustomerName,
		MenuList:      lines,
		CouponIDs:     o.CouponIDs,
		Subtotal:      FormatAmount(o.Subtotal),
		DiscountTotal: FormatAmount(o.DiscountTotal),
		PointsUsed:    FormatAmount(o.PointsUsed),
		Total:         FormatAmount(o.Total),
		PointsEarned:  FormatAmount(o.PointsEarned),
		PaymentMethod: o.PaymentMethod,
		CreatedAt:     o.CreatedAt.Unix(),
		UpdatedAt:     o.UpdatedAt.Unix(),
		IsCompleted:   completed,
		IsStarted:     started,
	}
}

// OrderFromDocument parses a persisted document. Invalid lifecycle flags
// surface as lifecycle.ErrInvalidFlags.
func OrderFromDocument(id OrderID, doc OrderDocument) (*Order, error) {
	state, err := lifecycle.Derive(doc.IsStarted, doc.IsCompleted)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", id, err)
	}

	o := &Order{
		ID:            id,
		CustomerID:    doc.CustomerID,
		CustomerName:  doc.CustomerName,
		CouponIDs:     doc.CouponIDs,
		PaymentMethod: doc.PaymentMethod,
		CreatedAt:     time.Unix(doc.CreatedAt, 0),
		UpdatedAt:     time.Unix(doc.UpdatedAt, 0),
		State:         state,
	}

	amounts := []struct {
		raw string
		dst *int64
	}{
		{doc.Subtotal, &o.Subtotal},
		{doc.DiscountTotal, &o.DiscountTotal},
		{doc.PointsUsed, &o.PointsUsed},
		{doc.Total, &o.Total},
		{doc.PointsEarned, &o.PointsEarned},
	}
	for _, a := range amounts {
		if *a.dst, err = ParseAmount(a.raw); err != nil {
			return nil, fmt.Errorf("order %s: %w", id, err)
		}
	}

	o.LineItems = make([]LineItem, 0, len(doc.MenuList))
	for _, ml := range doc.MenuList {
		qty, err := ParseAmount(ml.Quantity)
		if err != nil {
			return nil, fmt.Errorf("order %s: quantity: %w", id, err)
		}
		price, err := ParseAmount(ml.Price)
		if err != nil {
			return nil, fmt.Errorf("order %s: price: %w", id, err)
		}
		var unit int64
		if qty > 0 {
			unit = price / qty
		}
		o.LineItems = append(o.LineItems, LineItem{
			ProductID:       ml.MenuID,
			ProductName:     ml.MenuName,
			UnitPrice:       unit,
			Quantity:        qty,
			SelectedOptions: parseOptionLabels(ml.Options),
		})
	}
	return o, nil
}

// FormatAmount renders a whole-unit amount as a decimal string.
func FormatAmount(v int64) string {
	return decimal.NewFromInt(v).String()
}

// ParseAmount parses a decimal string holding a whole-unit amount.
// An empty string is zero.
func ParseAmount(raw string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("parse amount %q: not a whole amount", raw)
	}
	return d.IntPart(), nil
}

func parseOptionLabels(labels []string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	opts := make(map[string]string, len(labels))
	for _, l := range labels {
		name, value, _ := strings.Cut(l, ": ")
		opts[name] = value
	}
	return opts
}
