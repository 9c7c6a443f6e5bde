package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/kiosk-order-system/internal/lifecycle"
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/internal/realtime"
	"github.com/fairyhunter13/kiosk-order-system/internal/service"
)

// StaffHandler handles the order board used by kitchen staff.
type StaffHandler struct {
	dayClock
	service   OrderServiceInterface
	hub       Subscriber
	validator *validator.Validate
	keepAlive time.Duration
}

// NewStaffHandler creates a new StaffHandler.
func NewStaffHandler(svc OrderServiceInterface, hub Subscriber, v *validator.Validate, loc *time.Location) *StaffHandler {
	return &StaffHandler{
		dayClock:  dayClock{loc: loc, now: time.Now},
		service:   svc,
		hub:       hub,
		validator: v,
		keepAlive: defaultKeepAlive,
	}
}

// ListOrders handles GET /api/staff/orders?date=&state=&sort=asc|desc.
func (h *StaffHandler) ListOrders(c *fiber.Ctx) error {
	var q model.OrderListQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "invalid query")
	}
	if err := h.validator.Struct(q); err != nil {
		return badRequest(c, formatValidationError(err))
	}
	if q.Date == "" {
		q.Date = h.today()
	}

	filter := service.OrderFilter{State: lifecycle.State(q.State), Newest: q.Sort == "desc"}
	orders, err := h.service.ListByDate(c.Context(), q.Date, filter)
	if err != nil {
		return respondError(c, err, "failed to list orders")
	}
	return c.JSON(fiber.Map{"date_key": q.Date, "orders": orders})
}

// StreamOrders handles GET /api/staff/orders/events?date=.
func (h *StaffHandler) StreamOrders(c *fiber.Ctx) error {
	date, ok := h.dateOrToday(c)
	if !ok {
		return badRequest(c, "invalid request: date must be a YYMMDD date")
	}

	sub := h.hub.Subscribe(realtime.ForDay(date))
	orders, err := h.service.ListByDate(c.Context(), date, service.OrderFilter{})
	if err != nil {
		sub.Cancel()
		return respondError(c, err, "failed to open order board stream")
	}
	return streamOrders(c, sub, orders, false, h.keepAlive)
}

// Advance handles POST /api/staff/orders/:date/:seq/advance.
func (h *StaffHandler) Advance(c *fiber.Ctx) error {
	id, ok := parseOrderID(c)
	if !ok {
		return badRequest(c, "invalid order id")
	}

	var req model.AdvanceOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}
	to, err := lifecycle.ParseState(req.To)
	if err != nil {
		return badRequest(c, "invalid request: unknown state")
	}

	order, err := h.service.Advance(c.Context(), id, to)
	if err != nil {
		return respondError(c, err, "failed to advance order")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Str("order_id", id.String()).
		Str("state", string(order.State)).
		Msg("order advanced")

	return c.JSON(order)
}

// Stats handles GET /api/staff/stats/:date.
func (h *StaffHandler) Stats(c *fiber.Ctx) error {
	date := c.Params("date")
	if !model.ValidDateKey(date) {
		return badRequest(c, "invalid request: date must be a YYMMDD date")
	}

	stats, err := h.service.DailyStats(c.Context(), date)
	if err != nil {
		return respondError(c, err, "failed to compute daily stats")
	}
	return c.JSON(stats)
}
