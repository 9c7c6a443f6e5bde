package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/kiosk-order-system/internal/auth"
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
)

// AccountServiceInterface defines the interface for account business logic.
type AccountServiceInterface interface {
	Ensure(ctx context.Context, userID, name string) (*model.Account, error)
	RegisterPaymentMethod(ctx context.Context, userID, method string) (*model.Account, error)
}

// AccountHandler handles HTTP requests for the caller's account.
type AccountHandler struct {
	service   AccountServiceInterface
	validator *validator.Validate
}

// NewAccountHandler creates a new AccountHandler with the given service and validator.
func NewAccountHandler(svc AccountServiceInterface, v *validator.Validate) *AccountHandler {
	return &AccountHandler{service: svc, validator: v}
}

// GetAccount handles GET /api/account. The account is created on first use.
func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	var req model.CreateAccountRequest
	if err := c.QueryParser(&req); err != nil {
		return badRequest(c, "invalid query")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}

	account, err := h.service.Ensure(c.Context(), auth.UserID(c), req.Name)
	if err != nil {
		return respondError(c, err, "failed to load account")
	}
	return c.JSON(account)
}

// RegisterPaymentMethod handles POST /api/account/payment-methods.
func (h *AccountHandler) RegisterPaymentMethod(c *fiber.Ctx) error {
	var req model.RegisterPaymentMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}

	account, err := h.service.RegisterPaymentMethod(c.Context(), auth.UserID(c), req.Name)
	if err != nil {
		return respondError(c, err, "failed to register payment method")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("user_id", account.UserID).
		Str("payment_method", req.Name).
		Msg("payment method registered")

	return c.JSON(account)
}
