package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/kiosk-order-system/internal/auth"
	"github.com/fairyhunter13/kiosk-order-system/internal/lifecycle"
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/internal/realtime"
	"github.com/fairyhunter13/kiosk-order-system/internal/service"
)

// OrderServiceInterface defines the interface for order reads and transitions.
type OrderServiceInterface interface {
	GetForCustomer(ctx context.Context, userID string, id model.OrderID) (*model.Order, error)
	ListByDate(ctx context.Context, dateKey string, filter service.OrderFilter) ([]*model.Order, error)
	ListByCustomer(ctx context.Context, userID, dateKey string) ([]*model.Order, error)
	Advance(ctx context.Context, id model.OrderID, to lifecycle.State) (*model.Order, error)
	DailyStats(ctx context.Context, dateKey string) (*model.DailyStats, error)
}

// dayClock resolves the default order day.
type dayClock struct {
	loc *time.Location
	now func() time.Time
}

func (d dayClock) today() string {
	return model.DateKey(d.now().In(d.loc))
}

// dateOrToday returns the ?date= query or today's key; ok is false for a
// malformed date.
func (d dayClock) dateOrToday(c *fiber.Ctx) (string, bool) {
	date := c.Query("date")
	if date == "" {
		return d.today(), true
	}
	return date, model.ValidDateKey(date)
}

// OrderHandler handles a customer's own orders.
type OrderHandler struct {
	dayClock
	service   OrderServiceInterface
	hub       Subscriber
	keepAlive time.Duration
}

// NewOrderHandler creates a new OrderHandler. loc decides which calendar
// day "today" is.
func NewOrderHandler(svc OrderServiceInterface, hub Subscriber, loc *time.Location) *OrderHandler {
	return &OrderHandler{
		dayClock:  dayClock{loc: loc, now: time.Now},
		service:   svc,
		hub:       hub,
		keepAlive: defaultKeepAlive,
	}
}

// ListMine handles GET /api/orders?date=YYMMDD.
func (h *OrderHandler) ListMine(c *fiber.Ctx) error {
	date, ok := h.dateOrToday(c)
	if !ok {
		return badRequest(c, "invalid request: date must be a YYMMDD date")
	}

	orders, err := h.service.ListByCustomer(c.Context(), auth.UserID(c), date)
	if err != nil {
		return respondError(c, err, "failed to list orders")
	}
	return c.JSON(fiber.Map{"date_key": date, "orders": orders})
}

// GetMine handles GET /api/orders/:date/:seq.
func (h *OrderHandler) GetMine(c *fiber.Ctx) error {
	id, ok := parseOrderID(c)
	if !ok {
		return badRequest(c, "invalid order id")
	}

	order, err := h.service.GetForCustomer(c.Context(), auth.UserID(c), id)
	if err != nil {
		return respondError(c, err, "failed to get order")
	}
	return c.JSON(order)
}

// StreamMine handles GET /api/orders/:date/:seq/events. The stream ends
// once the order is READY.
func (h *OrderHandler) StreamMine(c *fiber.Ctx) error {
	id, ok := parseOrderID(c)
	if !ok {
		return badRequest(c, "invalid order id")
	}

	// subscribe before reading so no change between the two is lost
	sub := h.hub.Subscribe(realtime.ForOrder(id))
	order, err := h.service.GetForCustomer(c.Context(), auth.UserID(c), id)
	if err != nil {
		sub.Cancel()
		return respondError(c, err, "failed to open order stream")
	}
	return streamOrders(c, sub, []*model.Order{order}, true, h.keepAlive)
}
