package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/kiosk-order-system/internal/auth"
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
)

// CheckoutServiceInterface defines the interface for pricing and placing orders.
type CheckoutServiceInterface interface {
	Quote(ctx context.Context, userID string, req *model.CheckoutRequest) (*model.Quote, error)
	PlaceOrder(ctx context.Context, userID string, req *model.CheckoutRequest) (*model.Order, error)
}

// CheckoutHandler handles HTTP requests for checkout.
type CheckoutHandler struct {
	service   CheckoutServiceInterface
	validator *validator.Validate
}

// NewCheckoutHandler creates a new CheckoutHandler with the given service and validator.
func NewCheckoutHandler(svc CheckoutServiceInterface, v *validator.Validate) *CheckoutHandler {
	return &CheckoutHandler{service: svc, validator: v}
}

// parse decodes and validates the body, returning a client message on failure.
func (h *CheckoutHandler) parse(c *fiber.Ctx) (*model.CheckoutRequest, string) {
	var req model.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, "invalid request body"
	}
	if err := h.validator.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}
	return &req, ""
}

// Quote handles POST /api/checkout/quote. Nothing is persisted.
func (h *CheckoutHandler) Quote(c *fiber.Ctx) error {
	req, msg := h.parse(c)
	if req == nil {
		return badRequest(c, msg)
	}

	quote, err := h.service.Quote(c.Context(), auth.UserID(c), req)
	if err != nil {
		return respondError(c, err, "failed to quote cart")
	}
	return c.JSON(quote)
}

// PlaceOrder handles POST /api/checkout.
func (h *CheckoutHandler) PlaceOrder(c *fiber.Ctx) error {
	req, msg := h.parse(c)
	if req == nil {
		return badRequest(c, msg)
	}

	order, err := h.service.PlaceOrder(c.Context(), auth.UserID(c), req)
	if err != nil {
		return respondError(c, err, "failed to place order")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Str("order_id", order.ID.String()).
		Int64("total", order.Total).
		Msg("order placed")

	return c.Status(fiber.StatusCreated).JSON(order)
}
