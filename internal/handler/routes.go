package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/kiosk-order-system/internal/auth"
)

// Handlers groups every HTTP handler of the service.
type Handlers struct {
	Health   *HealthHandler
	Account  *AccountHandler
	Coupon   *CouponHandler
	Checkout *CheckoutHandler
	Order    *OrderHandler
	Staff    *StaffHandler
}

// Register mounts all routes on app. Everything under /api needs a bearer
// token; /api/staff additionally needs staffRole.
func Register(app *fiber.App, h Handlers, jwtSecret, staffRole string) {
	app.Get("/health", h.Health.Check)

	api := app.Group("/api", auth.Middleware(jwtSecret))

	staff := api.Group("/staff", auth.RequireRole(staffRole))
	staff.Get("/orders", h.Staff.ListOrders)
	staff.Get("/orders/events", h.Staff.StreamOrders)
	staff.Post("/orders/:date/:seq/advance", h.Staff.Advance)
	staff.Get("/stats/:date", h.Staff.Stats)

	user := auth.RequireUser()
	api.Get("/account", user, h.Account.GetAccount)
	api.Post("/account/payment-methods", user, h.Account.RegisterPaymentMethod)

	api.Get("/coupons", user, h.Coupon.Wallet)
	api.Post("/coupons/register", user, h.Coupon.Register)
	api.Post("/coupons/selection", user, h.Coupon.Toggle)

	api.Post("/checkout/quote", user, h.Checkout.Quote)
	api.Post("/checkout", user, h.Checkout.PlaceOrder)

	api.Get("/orders", user, h.Order.ListMine)
	api.Get("/orders/:date/:seq", user, h.Order.GetMine)
	api.Get("/orders/:date/:seq/events", user, h.Order.StreamMine)
}
