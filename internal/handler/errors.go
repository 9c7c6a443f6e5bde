package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/internal/service"
)

type errorResponse struct {
	err     error
	status  int
	message string
}

// Specific sentinels first, then the categories they wrap.
var errorResponses = []errorResponse{
	{service.ErrUnauthenticated, fiber.StatusUnauthorized, "authentication required"},
	{service.ErrForbidden, fiber.StatusForbidden, "forbidden"},

	{service.ErrOrderNotFound, fiber.StatusNotFound, "order not found"},
	{service.ErrAccountNotFound, fiber.StatusNotFound, "account not found"},
	{service.ErrCouponNotFound, fiber.StatusNotFound, "coupon not found"},

	{service.ErrPaymentMethodRequired, fiber.StatusUnprocessableEntity, "payment method required"},
	{service.ErrEmptyCart, fiber.StatusUnprocessableEntity, "cart is empty"},
	{service.ErrInsufficientPoints, fiber.StatusUnprocessableEntity, "insufficient points"},
	{service.ErrRedemptionExceedsTotal, fiber.StatusUnprocessableEntity, "points redemption exceeds payable total"},
	{service.ErrCouponNotOwned, fiber.StatusUnprocessableEntity, "coupon not in wallet"},

	{service.ErrInvalidTransition, fiber.StatusBadRequest, "invalid order state transition"},
	{service.ErrInvalidPoints, fiber.StatusBadRequest, "points must be a positive integer"},
	{service.ErrCouponNotCombinable, fiber.StatusBadRequest, "coupon cannot be combined with others"},
	{service.ErrCouponIneligible, fiber.StatusBadRequest, "coupon is not eligible for this order"},
	{service.ErrCouponUnavailable, fiber.StatusBadRequest, "coupon is not available"},
	{service.ErrCouponAlreadyRegistered, fiber.StatusBadRequest, "coupon already registered"},

	{service.ErrCorruptOrder, fiber.StatusConflict, "order state is corrupt"},
	{service.ErrOrderExists, fiber.StatusConflict, "order already exists"},
	{service.ErrAccountExists, fiber.StatusConflict, "account already exists"},

	{service.ErrValidation, fiber.StatusBadRequest, "invalid request"},
	{service.ErrPrecondition, fiber.StatusUnprocessableEntity, "precondition failed"},
	{service.ErrNotFound, fiber.StatusNotFound, "not found"},
	{service.ErrIntegrity, fiber.StatusConflict, "data integrity error"},
	{service.ErrTransient, fiber.StatusServiceUnavailable, "service temporarily unavailable"},
}

// respondError maps a service error onto a status code and JSON body.
// Server-side failures are logged with the request context.
func respondError(c *fiber.Ctx, err error, msg string) error {
	status, message := fiber.StatusInternalServerError, "internal server error"
	for _, r := range errorResponses {
		if errors.Is(err, r.err) {
			status, message = r.status, r.message
			break
		}
	}

	if status >= fiber.StatusInternalServerError || status == fiber.StatusConflict {
		event := log.Error()
		if status == fiber.StatusServiceUnavailable {
			event = log.Warn()
		}
		event.
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Msg(msg)
	}

	return c.Status(status).JSON(fiber.Map{"error": message})
}

// formatValidationError converts validator errors to client messages.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := jsonFieldName(fe.Namespace())
			switch fe.Tag() {
			case "required":
				return "invalid request: " + field + " is required"
			case "notblank":
				return "invalid request: " + field + " cannot be whitespace only"
			case "max":
				return "invalid request: " + field + " exceeds maximum of " + fe.Param()
			case "min":
				return "invalid request: " + field + " requires at least " + fe.Param()
			case "gte":
				return "invalid request: " + field + " must be at least " + fe.Param()
			case "oneof":
				return "invalid request: " + field + " must be one of " + fe.Param()
			case "datekey":
				return "invalid request: " + field + " must be a YYMMDD date"
			default:
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

// jsonFieldName turns "CheckoutRequest.Entries[0].Quantity" into
// "entries[0].quantity".
func jsonFieldName(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		namespace = rest
	}
	parts := strings.Split(namespace, ".")
	for i, p := range parts {
		parts[i] = snakeCase(p)
	}
	return strings.Join(parts, ".")
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] != '[' {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return strings.ReplaceAll(b.String(), "_i_d", "_id")
}

// parseOrderID reads the :date and :seq route params.
func parseOrderID(c *fiber.Ctx) (model.OrderID, bool) {
	id, err := model.NewOrderID(c.Params("date"), c.Params("seq"))
	return id, err == nil
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}
