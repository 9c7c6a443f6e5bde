package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/kiosk-order-system/internal/lifecycle"
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/internal/service"
	"github.com/fairyhunter13/kiosk-order-system/pkg/database"
)

const orderColumns = `date_key, seq, customer_id, customer_name, menu_list, coupon_ids,
	subtotal, discount_total, points_used, total, points_earned, payment_method,
	created_at, updated_at, is_started, is_completed`

// OrderRepository provides access to placed orders using pgx.
type OrderRepository struct {
	pool PoolInterface
}

// NewOrderRepository creates a new OrderRepository with the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// NewOrderRepositoryWithPool creates a new OrderRepository with a custom pool interface.
// This is primarily used for testing.
func NewOrderRepositoryWithPool(pool PoolInterface) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Insert stores a new order document within a transaction.
// Returns service.ErrOrderExists if the id is already taken.
func (r *OrderRepository) Insert(ctx context.Context, tx database.TxQuerier, order *model.Order) error {
	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	doc := order.Document()
	_, err := tx.Exec(ctx, query,
		order.ID.DateKey,
		order.ID.Sequence,
		doc.CustomerID,
		doc.CustomerName,
		doc.MenuList,
		nonNil(doc.CouponIDs),
		doc.Subtotal,
		doc.DiscountTotal,
		doc.PointsUsed,
		doc.Total,
		doc.PointsEarned,
		doc.PaymentMethod,
		doc.CreatedAt,
		doc.UpdatedAt,
		doc.IsStarted,
		doc.IsCompleted,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrOrderExists
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order.
// Returns service.ErrOrderNotFound if the order doesn't exist and an error
// wrapping lifecycle.ErrInvalidFlags if the stored flags are inconsistent.
func (r *OrderRepository) GetByID(ctx context.Context, id model.OrderID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE date_key = $1 AND seq = $2`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id.DateKey, id.Sequence))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return order, nil
}

// GetForUpdate retrieves an order with a row lock held until the
// transaction ends.
func (r *OrderRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id model.OrderID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE date_key = $1 AND seq = $2 FOR UPDATE`

	order, err := scanOrder(tx.QueryRow(ctx, query, id.DateKey, id.Sequence))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %s for update: %w", id, err)
	}
	return order, nil
}

// UpdateState writes the lifecycle flags of state.
func (r *OrderRepository) UpdateState(ctx context.Context, tx database.TxQuerier, id model.OrderID, state lifecycle.State, updatedAt time.Time) error {
	query := `UPDATE orders SET is_started = $3, is_completed = $4, updated_at = $5
		WHERE date_key = $1 AND seq = $2`

	started, completed := state.Flags()
	tag, err := tx.Exec(ctx, query, id.DateKey, id.Sequence, started, completed, updatedAt.Unix())
	if err != nil {
		return fmt.Errorf("update order %s state: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrOrderNotFound
	}
	return nil
}

// ListByDate returns every order of the day in sequence order.
// Rows that fail to parse are logged and skipped.
func (r *OrderRepository) ListByDate(ctx context.Context, dateKey string) ([]*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE date_key = $1 ORDER BY seq`
	return r.list(ctx, query, dateKey)
}

// ListByCustomer returns the customer's orders for one day in sequence order.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID, dateKey string) ([]*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 AND date_key = $2 ORDER BY seq`
	return r.list(ctx, query, customerID, dateKey)
}

// SalesTotal sums the charged totals of a day's orders. The sum is computed
// as NUMERIC so it cannot overflow, and scanned through the decimal codec.
func (r *OrderRepository) SalesTotal(ctx context.Context, dateKey string) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(total::numeric), 0) FROM orders WHERE date_key = $1`

	var total decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, dateKey).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum sales for %s: %w", dateKey, err)
	}
	return total, nil
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]*model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*model.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			if errors.Is(err, lifecycle.ErrInvalidFlags) {
				log.Warn().Err(err).Msg("skipping order with inconsistent lifecycle flags")
				continue
			}
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var id model.OrderID
	var doc model.OrderDocument
	err := row.Scan(
		&id.DateKey,
		&id.Sequence,
		&doc.CustomerID,
		&doc.CustomerName,
		&doc.MenuList,
		&doc.CouponIDs,
		&doc.Subtotal,
		&doc.DiscountTotal,
		&doc.PointsUsed,
		&doc.Total,
		&doc.PointsEarned,
		&doc.PaymentMethod,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.IsStarted,
		&doc.IsCompleted,
	)
	if err != nil {
		return nil, err
	}
	return model.OrderFromDocument(id, doc)
}
