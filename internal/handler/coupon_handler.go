package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/kiosk-order-system/internal/auth"
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
)

// CouponServiceInterface defines the interface for coupon wallet logic.
type CouponServiceInterface interface {
	Register(ctx context.Context, userID, couponID string) (*model.Coupon, error)
	Wallet(ctx context.Context, userID string, subtotal int64) ([]model.WalletCoupon, error)
	Toggle(ctx context.Context, userID string, selected []string, couponID string, subtotal int64) ([]model.Coupon, error)
}

// CouponHandler handles HTTP requests for the caller's coupon wallet.
type CouponHandler struct {
	service   CouponServiceInterface
	validator *validator.Validate
}

// NewCouponHandler creates a new CouponHandler with the given service and validator.
func NewCouponHandler(svc CouponServiceInterface, v *validator.Validate) *CouponHandler {
	return &CouponHandler{service: svc, validator: v}
}

// Wallet handles GET /api/coupons?subtotal=N.
func (h *CouponHandler) Wallet(c *fiber.Ctx) error {
	subtotal := int64(c.QueryInt("subtotal", 0))
	if subtotal < 0 {
		return badRequest(c, "invalid request: subtotal must be at least 0")
	}

	wallet, err := h.service.Wallet(c.Context(), auth.UserID(c), subtotal)
	if err != nil {
		return respondError(c, err, "failed to load coupon wallet")
	}
	return c.JSON(fiber.Map{"coupons": wallet})
}

// Register handles POST /api/coupons/register.
func (h *CouponHandler) Register(c *fiber.Ctx) error {
	var req model.RegisterCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}

	coupon, err := h.service.Register(c.Context(), auth.UserID(c), req.CouponID)
	if err != nil {
		return respondError(c, err, "failed to register coupon")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("user_id", auth.UserID(c)).
		Str("coupon_id", coupon.ID).
		Msg("coupon registered")

	return c.Status(fiber.StatusCreated).JSON(coupon)
}

// Toggle handles POST /api/coupons/selection.
func (h *CouponHandler) Toggle(c *fiber.Ctx) error {
	var req model.ToggleCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}

	selected, err := h.service.Toggle(c.Context(), auth.UserID(c), req.Selected, req.CouponID, req.Subtotal)
	if err != nil {
		return respondError(c, err, "failed to toggle coupon")
	}
	return c.JSON(fiber.Map{"selected": selected})
}
