package service

import (
	"errors"
	"fmt"
)

// Error categories. Every error below wraps exactly one of them, so callers
// can branch with errors.Is on the category alone.
var (
	// ErrValidation marks a rejected operation with no side effects.
	ErrValidation = errors.New("validation error")

	// ErrPrecondition marks an operation rejected before any persistence.
	ErrPrecondition = errors.New("precondition failed")

	// ErrTransient marks a store failure the caller may retry.
	ErrTransient = errors.New("temporarily unavailable")

	// ErrIntegrity marks stored data that violates an invariant.
	ErrIntegrity = errors.New("data integrity error")

	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("not found")
)

var (
	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = fmt.Errorf("%w: invalid request", ErrValidation)

	// ErrInvalidTransition is returned for a disallowed lifecycle transition
	ErrInvalidTransition = fmt.Errorf("%w: invalid order state transition", ErrValidation)

	// ErrInvalidPoints is returned for a redemption that is not a positive integer
	ErrInvalidPoints = fmt.Errorf("%w: points must be a positive integer", ErrValidation)

	// ErrCouponNotCombinable is returned when a non-combinable coupon is combined
	ErrCouponNotCombinable = fmt.Errorf("%w: coupon cannot be combined with others", ErrValidation)

	// ErrCouponIneligible is returned when a selected coupon is not usable for the order
	ErrCouponIneligible = fmt.Errorf("%w: coupon is not eligible for this order", ErrValidation)

	// ErrCouponUnavailable is returned when registering an expired or disabled coupon
	ErrCouponUnavailable = fmt.Errorf("%w: coupon is not available", ErrValidation)

	// ErrCouponAlreadyRegistered is returned when a coupon is already in the wallet
	ErrCouponAlreadyRegistered = fmt.Errorf("%w: coupon already registered", ErrValidation)
)

var (
	// ErrUnauthenticated is returned when an operation is invoked without an identity
	ErrUnauthenticated = fmt.Errorf("%w: unauthenticated", ErrPrecondition)

	// ErrForbidden is returned when the caller does not own the resource
	ErrForbidden = fmt.Errorf("%w: forbidden", ErrPrecondition)

	// ErrPaymentMethodRequired is returned when no registered payment method was chosen
	ErrPaymentMethodRequired = fmt.Errorf("%w: payment method required", ErrPrecondition)

	// ErrEmptyCart is returned when checking out an empty cart
	ErrEmptyCart = fmt.Errorf("%w: cart is empty", ErrPrecondition)

	// ErrInsufficientPoints is returned when a redemption exceeds the balance
	ErrInsufficientPoints = fmt.Errorf("%w: insufficient points", ErrPrecondition)

	// ErrRedemptionExceedsTotal is returned when a redemption exceeds the payable total
	ErrRedemptionExceedsTotal = fmt.Errorf("%w: points redemption exceeds payable total", ErrPrecondition)

	// ErrCouponNotOwned is returned when a selected coupon is not in the caller's unused set
	ErrCouponNotOwned = fmt.Errorf("%w: coupon not in wallet", ErrPrecondition)
)

var (
	// ErrOrderNotFound is returned when an order cannot be found
	ErrOrderNotFound = fmt.Errorf("%w: order", ErrNotFound)

	// ErrAccountNotFound is returned when an account cannot be found
	ErrAccountNotFound = fmt.Errorf("%w: account", ErrNotFound)

	// ErrCouponNotFound is returned when a coupon cannot be found
	ErrCouponNotFound = fmt.Errorf("%w: coupon", ErrNotFound)
)

var (
	// ErrCorruptOrder is returned when a stored order has an invalid state
	ErrCorruptOrder = fmt.Errorf("%w: order state flags are invalid", ErrIntegrity)

	// ErrOrderExists is returned when an order id is written twice
	ErrOrderExists = fmt.Errorf("%w: order already exists", ErrIntegrity)

	// ErrAccountExists is returned when an account is created twice
	ErrAccountExists = fmt.Errorf("%w: account already exists", ErrIntegrity)
)

// transient wraps an infrastructure error as retryable unless it already
// carries a category.
func transient(op string, err error) error {
	if categorized(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
}

func categorized(err error) bool {
	for _, c := range []error{ErrValidation, ErrPrecondition, ErrTransient, ErrIntegrity, ErrNotFound} {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}
