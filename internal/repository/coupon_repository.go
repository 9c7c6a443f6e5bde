package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/internal/service"
)

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const couponColumns = `id, name, description, discount_type, discount_value, min_order_value,
	max_discount_value, valid_from, valid_to, combinable, available, is_public`

// CouponRepository provides read access to coupon definitions using pgx.
type CouponRepository struct {
	pool PoolInterface
}

// NewCouponRepository creates a new CouponRepository with the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// NewCouponRepositoryWithPool creates a new CouponRepository with a custom pool interface.
// This is primarily used for testing.
func NewCouponRepositoryWithPool(pool PoolInterface) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// GetByID retrieves a coupon definition.
// Returns service.ErrCouponNotFound if the coupon doesn't exist.
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	coupon, err := scanCoupon(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon %s: %w", id, err)
	}
	return coupon, nil
}

// GetByIDs retrieves coupon definitions in the order of ids.
// Returns service.ErrCouponNotFound if any id is unknown.
func (r *CouponRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Coupon, error) {
	if len(ids) == 0 {
		return []model.Coupon{}, nil
	}
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query coupons: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]model.Coupon, len(ids))
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		byID[c.ID] = *c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coupons: %w", err)
	}

	out := make([]model.Coupon, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", service.ErrCouponNotFound, id)
		}
		out = append(out, c)
	}
	return out, nil
}

func scanCoupon(row rowScanner) (*model.Coupon, error) {
	var c model.Coupon
	var discountType string
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&discountType,
		&c.DiscountValue,
		&c.MinOrderValue,
		&c.MaxDiscountValue,
		&c.ValidFrom,
		&c.ValidTo,
		&c.Combinable,
		&c.Available,
		&c.Public,
	)
	if err != nil {
		return nil, err
	}
	c.DiscountType = model.DiscountType(discountType)
	return &c, nil
}
